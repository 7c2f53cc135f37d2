// Package modulate converts an emotion snapshot plus situational context
// into bounded response-shaping parameters. Every function here is pure:
// it reads a state and a context and returns a value, never mutating
// anything.
package modulate

import (
	"math"
	"strings"

	"affectd/internal/emotion"
)

// Parameters is the bounded tuple of response-shaping knobs.
type Parameters struct {
	Sarcasm         float64
	Formality       float64
	Warmth          float64
	Humor           float64
	SelfDeprecation float64
	Emoji           float64
	Nickname        float64
	ResponseLength  int

	Seeking    bool
	Tender     bool
	Guarded    bool
	Deflecting bool
}

// Context is the situational input alongside the emotion snapshot.
type Context struct {
	Topic        string
	ForceSerious bool
	Tags         map[string]bool
}

var seriousVocabulary = []string{
	"death", "died", "dying", "loss", "grief", "crisis",
	"emergency", "injury", "hospital", "suicide",
}

func isSerious(ctx Context) bool {
	if ctx.ForceSerious {
		return true
	}
	topic := strings.ToLower(ctx.Topic)
	for _, token := range seriousVocabulary {
		if strings.Contains(topic, token) {
			return true
		}
	}
	return false
}

// row is one dimension's contribution to each parameter, keyed the same
// way as Parameters so Modulate can walk both in lockstep.
type row struct {
	Sarcasm, Formality, Warmth, Humor float64
	SelfDeprecation, Emoji, Nickname  float64
	Length                            float64
}

// toneRule asserts a boolean flag when a dimension's signed deviation
// from 0.5 crosses threshold in the given direction.
type toneRule struct {
	Dimension emotion.Dimension
	Threshold float64
	Positive  bool
}

// Config is the modulation configuration: baseline parameters, the
// per-dimension deltas, tone-flag thresholds, self-awareness line
// templates, and the variance bounds used by Validate.
type Config struct {
	Baseline Parameters
	Rows     [emotion.DimensionCount]row

	Seeking    toneRule
	Tender     toneRule
	Guarded    toneRule
	Deflecting toneRule

	SelfAwarenessAbove [emotion.DimensionCount]string
	SelfAwarenessBelow [emotion.DimensionCount]string

	VarianceLow  float64
	VarianceHigh float64
}

// DefaultConfig is the reference modulation table.
func DefaultConfig() Config {
	var rows [emotion.DimensionCount]row

	rows[emotion.Loneliness] = row{Warmth: 0.25, Nickname: 0.2, SelfDeprecation: 0.1, Length: 15}
	rows[emotion.Excitement] = row{Humor: 0.3, Emoji: 0.3, Length: 20}
	rows[emotion.Frustration] = row{Sarcasm: 0.25, Formality: -0.15, Length: -20}
	rows[emotion.Jealousy] = row{Formality: 0.1, Warmth: -0.1}
	rows[emotion.Vulnerability] = row{Warmth: 0.2, SelfDeprecation: 0.15, Length: -10}
	rows[emotion.Confidence] = row{Sarcasm: 0.1, Formality: -0.1, Length: 10}
	rows[emotion.Curiosity] = row{Humor: 0.1, Length: 25}
	rows[emotion.Affection] = row{Warmth: 0.35, Emoji: 0.2, Nickname: 0.3}
	rows[emotion.Defensiveness] = row{Formality: 0.25, Warmth: -0.2, Length: -15}

	return Config{
		Baseline: Parameters{
			Sarcasm:         0.2,
			Formality:       0.35,
			Warmth:          0.5,
			Humor:           0.3,
			SelfDeprecation: 0.15,
			Emoji:           0.2,
			Nickname:        0.25,
			ResponseLength:  90,
		},
		Rows: rows,
		Seeking:    toneRule{Dimension: emotion.Loneliness, Threshold: 0.25, Positive: true},
		Tender:     toneRule{Dimension: emotion.Affection, Threshold: 0.20, Positive: true},
		Guarded:    toneRule{Dimension: emotion.Defensiveness, Threshold: 0.20, Positive: true},
		Deflecting: toneRule{Dimension: emotion.Vulnerability, Threshold: 0.25, Positive: true},
		SelfAwarenessAbove: [emotion.DimensionCount]string{
			emotion.Loneliness:    "I've been missing our conversations.",
			emotion.Excitement:    "I'm genuinely excited right now.",
			emotion.Frustration:   "I'm a little on edge, bear with me.",
			emotion.Jealousy:      "Part of me wishes I had more of your attention.",
			emotion.Vulnerability: "I feel a bit exposed saying this.",
			emotion.Confidence:    "I'm feeling sure of myself today.",
			emotion.Curiosity:     "I'm curious where this is going.",
			emotion.Affection:     "I'm feeling warm toward you right now.",
			emotion.Defensiveness: "I'm a bit guarded at the moment.",
		},
		SelfAwarenessBelow: [emotion.DimensionCount]string{
			emotion.Loneliness:    "I feel pretty connected right now.",
			emotion.Excitement:    "I'm feeling low-energy today.",
			emotion.Frustration:   "I'm calm right now.",
			emotion.Jealousy:      "I'm not bothered by that at all.",
			emotion.Vulnerability: "I feel steady right now.",
			emotion.Confidence:    "I'm second-guessing myself a bit.",
			emotion.Curiosity:     "Nothing's really grabbing my attention right now.",
			emotion.Affection:     "I'm feeling a bit distant right now.",
			emotion.Defensiveness: "I feel at ease with you.",
		},
		VarianceLow:  0.7,
		VarianceHigh: 1.3,
	}
}

// Modulate implements §4.4: the situational gate short-circuits to the
// baseline verbatim; otherwise every parameter is the baseline plus a
// deviation-weighted sum of the configured per-dimension deltas.
func (c Config) Modulate(state emotion.State, ctx Context) (Parameters, string) {
	if isSerious(ctx) {
		return c.Baseline, ""
	}

	p := c.Baseline
	lengthDelta := 0.0

	for _, d := range emotion.Dimensions() {
		w := clamp01(math.Abs(state.Values[d]-0.5) * 2)
		if w == 0 {
			continue
		}
		r := c.Rows[d]
		p.Sarcasm += w * r.Sarcasm
		p.Formality += w * r.Formality
		p.Warmth += w * r.Warmth
		p.Humor += w * r.Humor
		p.SelfDeprecation += w * r.SelfDeprecation
		p.Emoji += w * r.Emoji
		p.Nickname += w * r.Nickname
		lengthDelta += w * r.Length
	}

	p.Sarcasm = clamp01(p.Sarcasm)
	p.Formality = clamp01(p.Formality)
	p.Warmth = clamp01(p.Warmth)
	p.Humor = clamp01(p.Humor)
	p.SelfDeprecation = clamp01(p.SelfDeprecation)
	p.Emoji = clamp01(p.Emoji)
	p.Nickname = clamp01(p.Nickname)

	length := float64(c.Baseline.ResponseLength) + lengthDelta
	p.ResponseLength = int(math.Round(clampRange(length, 35, 300)))

	p.Seeking = c.Seeking.fires(state)
	p.Tender = c.Tender.fires(state)
	p.Guarded = c.Guarded.fires(state)
	p.Deflecting = c.Deflecting.fires(state)

	return p, c.selfAwarenessLine(state)
}

func (r toneRule) fires(state emotion.State) bool {
	dev := state.Values[r.Dimension] - 0.5
	if r.Positive {
		return dev > r.Threshold
	}
	return dev < -r.Threshold
}

// selfAwarenessLine identifies the single dominant emotion by largest
// |value-0.5|, tie-broken by the canonical dimension order. Below a
// deviation of 0.15 there is no line.
func (c Config) selfAwarenessLine(state emotion.State) string {
	best := -1.0
	var bestDim emotion.Dimension
	for _, d := range emotion.Dimensions() {
		dev := math.Abs(state.Values[d] - 0.5)
		if dev > best {
			best = dev
			bestDim = d
		}
	}
	if best < 0.15 {
		return ""
	}
	if state.Values[bestDim] >= 0.5 {
		return c.SelfAwarenessAbove[bestDim]
	}
	return c.SelfAwarenessBelow[bestDim]
}

// Validate reports, for each parameter, whether it lies within
// [variance_low*baseline, variance_high*baseline]. Used by tests and by
// Persistence when auditing long-term drift; never used to reject
// output.
func (c Config) Validate(p Parameters) map[string]bool {
	lo, hi := c.VarianceLow, c.VarianceHigh
	if lo == 0 && hi == 0 {
		lo, hi = 0.7, 1.3
	}
	within := func(v, baseline float64) bool {
		if baseline == 0 {
			return v == 0
		}
		lower, upper := lo*baseline, hi*baseline
		if lower > upper {
			lower, upper = upper, lower
		}
		return v >= lower && v <= upper
	}
	return map[string]bool{
		"sarcasm":          within(p.Sarcasm, c.Baseline.Sarcasm),
		"formality":        within(p.Formality, c.Baseline.Formality),
		"warmth":           within(p.Warmth, c.Baseline.Warmth),
		"humor":            within(p.Humor, c.Baseline.Humor),
		"self_deprecation": within(p.SelfDeprecation, c.Baseline.SelfDeprecation),
		"emoji":            within(p.Emoji, c.Baseline.Emoji),
		"nickname":         within(p.Nickname, c.Baseline.Nickname),
		"response_length":  within(float64(p.ResponseLength), float64(c.Baseline.ResponseLength)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
