// Package emotion holds the nine-dimensional mood vector at the center of
// the Affect Core: the values, their floors, and the only operations
// allowed to mutate them.
package emotion

import (
	"sort"
	"time"
)

// Dimension identifies one of the nine fixed emotional axes. The
// declaration order is the canonical order used for deterministic
// iteration, tie-breaks, and serialization.
type Dimension int

const (
	Loneliness Dimension = iota
	Excitement
	Frustration
	Jealousy
	Vulnerability
	Confidence
	Curiosity
	Affection
	Defensiveness

	DimensionCount
)

var dimensionNames = [DimensionCount]string{
	"loneliness", "excitement", "frustration", "jealousy", "vulnerability",
	"confidence", "curiosity", "affection", "defensiveness",
}

func (d Dimension) String() string {
	if d < 0 || int(d) >= len(dimensionNames) {
		return "unknown"
	}
	return dimensionNames[d]
}

// ParseDimension maps a canonical name back to a Dimension. Used by
// persistence and configuration loading, where dimensions travel as
// strings.
func ParseDimension(name string) (Dimension, bool) {
	for i, n := range dimensionNames {
		if n == name {
			return Dimension(i), true
		}
	}
	return 0, false
}

// Dimensions returns the fixed iteration order.
func Dimensions() [DimensionCount]Dimension {
	var out [DimensionCount]Dimension
	for i := range out {
		out[i] = Dimension(i)
	}
	return out
}

var floors = [DimensionCount]float64{
	Loneliness:    0.3,
	Excitement:    0.1,
	Frustration:   0.1,
	Jealousy:      0.1,
	Vulnerability: 0.1,
	Confidence:    0.1,
	Curiosity:     0.1,
	Affection:     0.1,
	Defensiveness: 0.1,
}

// Floor returns the minimum value permitted for a dimension.
func Floor(d Dimension) float64 { return floors[d] }

const neutralValue = 0.5

// State is the mood vector plus per-dimension momentum and the instant of
// its last mutation. Values and Momentum are fixed-size arrays, so
// assigning a State by value already produces an alias-free deep copy —
// Snapshot relies on this.
type State struct {
	Values   [DimensionCount]float64
	Momentum [DimensionCount]float64
	Instant  time.Time
}

// Neutral returns the cold-start baseline: every dimension at 0.5,
// momentum zero.
func Neutral(now time.Time) State {
	s := State{Instant: now}
	for i := range s.Values {
		s.Values[i] = neutralValue
	}
	return s
}

// Snapshot returns an immutable copy safe to hand across goroutine
// boundaries. O(1): the arrays copy by value.
func (s *State) Snapshot() State {
	return *s
}

// SetAbsolute clamps v to the dimension's valid range before storing it.
// Never errors.
func (s *State) SetAbsolute(d Dimension, v float64) {
	s.Values[d] = clamp(v, floors[d], 1.0)
}

// Delta is the realized outcome of an ApplyDelta call: how much the
// stored value actually moved, and how much overflow (if any) was
// clipped at the ceiling.
type Delta struct {
	Realized float64
	Overflow float64
}

// ApplyDelta computes value_d + delta. Overflow above 1.0 is clipped and
// compared against the existing momentum for that dimension; the larger
// of the two is retained (momentum only ever grows here — ClearMomentum
// is the sole reset path). Underflow below the floor is clamped without
// touching momentum.
func (s *State) ApplyDelta(d Dimension, delta float64) Delta {
	before := s.Values[d]
	v := before + delta

	if v > 1.0 {
		overflow := v - 1.0
		if overflow > s.Momentum[d] {
			s.Momentum[d] = overflow
		}
		s.Values[d] = 1.0
		return Delta{Realized: 1.0 - before, Overflow: overflow}
	}
	if v < floors[d] {
		s.Values[d] = floors[d]
		return Delta{Realized: floors[d] - before, Overflow: 0}
	}
	s.Values[d] = v
	return Delta{Realized: delta, Overflow: 0}
}

// ClearMomentum zeroes one dimension's momentum, or all of them when d is
// nil. Deliberate only — nothing else resets momentum.
func (s *State) ClearMomentum(d *Dimension) {
	if d == nil {
		s.Momentum = [DimensionCount]float64{}
		return
	}
	s.Momentum[*d] = 0
}

// DominantEmotion is one entry of a DominantEmotions ranking.
type DominantEmotion struct {
	Dimension Dimension
	Value     float64
	Deviation float64
}

// DominantEmotions returns the top-n dimensions by |value-0.5|,
// descending, tie-broken by the canonical dimension order.
func (s *State) DominantEmotions(n int) []DominantEmotion {
	all := make([]DominantEmotion, DimensionCount)
	for i := 0; i < int(DimensionCount); i++ {
		all[i] = DominantEmotion{
			Dimension: Dimension(i),
			Value:     s.Values[i],
			Deviation: abs(s.Values[i] - neutralValue),
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Deviation != all[j].Deviation {
			return all[i].Deviation > all[j].Deviation
		}
		return all[i].Dimension < all[j].Dimension
	})
	if n > len(all) {
		n = len(all)
	}
	if n < 0 {
		n = 0
	}
	return all[:n]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
