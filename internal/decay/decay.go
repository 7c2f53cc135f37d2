// Package decay implements the Affect Core's pure time-decay function:
// given a state, an elapsed duration, and a parameter set, it produces
// the aged state. Nothing here mutates shared state or touches a clock.
package decay

import (
	"time"

	"affectd/internal/emotion"
)

// Params configures one run of Advance. Reference defaults are per a
// 300-second tick, matching the values the Scheduler ships with.
type Params struct {
	Rates                [emotion.DimensionCount]float64
	TickSeconds          float64
	InertiaThreshold     float64
	InertiaFactor        float64
	IdleThresholdSeconds float64
	IdleRatesPerMinute   [emotion.DimensionCount]float64
	SaturationCapDays    float64
}

// DefaultParams returns the reference configuration from §4.2.
func DefaultParams() Params {
	var rates [emotion.DimensionCount]float64
	rates[emotion.Loneliness] = 0.02
	rates[emotion.Excitement] = 0.06
	rates[emotion.Frustration] = 0.04
	rates[emotion.Jealousy] = 0.03
	rates[emotion.Vulnerability] = 0.08
	rates[emotion.Confidence] = 0.03
	rates[emotion.Curiosity] = 0.05
	rates[emotion.Affection] = 0.04
	rates[emotion.Defensiveness] = 0.05

	var idle [emotion.DimensionCount]float64
	idle[emotion.Loneliness] = 0.01
	idle[emotion.Excitement] = -0.02

	return Params{
		Rates:                rates,
		TickSeconds:          300,
		InertiaThreshold:     0.8,
		InertiaFactor:        0.5,
		IdleThresholdSeconds: 300,
		IdleRatesPerMinute:   idle,
		SaturationCapDays:    30,
	}
}

// Result is the outcome of Advance: the aged state, and whether the
// requested duration was clipped by the saturation cap.
type Result struct {
	State     emotion.State
	Saturated bool
}

// Advance steps state forward by dt, dividing it into whole ticks plus a
// residual fraction and applying the per-dimension decay/inertia/idle-drift
// step to each. lastInteraction anchors the idle-drift check and does not
// itself advance — only state.Instant and the returned state do.
//
// dt above the saturation cap is clipped; additional time is discarded
// and Saturated is set so Persistence can log a saturated_catchup event.
func Advance(state emotion.State, dt time.Duration, lastInteraction time.Time, params Params) Result {
	if dt <= 0 {
		return Result{State: state}
	}

	saturated := false
	capDuration := time.Duration(params.SaturationCapDays * 24 * float64(time.Hour))
	if capDuration > 0 && dt > capDuration {
		dt = capDuration
		saturated = true
	}

	tick := params.TickSeconds
	if tick <= 0 {
		tick = 300
	}

	totalSeconds := dt.Seconds()
	wholeTicks := int(totalSeconds / tick)
	residual := totalSeconds - float64(wholeTicks)*tick

	cur := state
	virtualNow := state.Instant
	for i := 0; i < wholeTicks; i++ {
		virtualNow = virtualNow.Add(time.Duration(tick * float64(time.Second)))
		cur = step(cur, tick, virtualNow, lastInteraction, params)
	}
	if residual > 1e-9 {
		virtualNow = virtualNow.Add(time.Duration(residual * float64(time.Second)))
		cur = step(cur, residual, virtualNow, lastInteraction, params)
	}
	cur.Instant = state.Instant.Add(dt)
	return Result{State: cur, Saturated: saturated}
}

// step applies one decay step of elapsedSeconds (either a whole tick or
// the residual fraction) to every dimension.
func step(s emotion.State, elapsedSeconds float64, virtualNow, lastInteraction time.Time, p Params) emotion.State {
	tick := p.TickSeconds
	if tick <= 0 {
		tick = 300
	}
	fraction := elapsedSeconds / tick
	idle := virtualNow.Sub(lastInteraction).Seconds() >= p.IdleThresholdSeconds

	for _, d := range emotion.Dimensions() {
		v := s.Values[d]

		rate := p.Rates[d]
		if v >= p.InertiaThreshold {
			rate *= p.InertiaFactor
		}
		move := rate * fraction

		switch {
		case v > 0.5:
			v -= move
		case v < 0.5:
			v += move
		}

		if idle {
			v += (p.IdleRatesPerMinute[d] / 60.0) * elapsedSeconds
		}

		s.Values[d] = clampFloorCeil(v, emotion.Floor(d))
	}
	return s
}

func clampFloorCeil(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
