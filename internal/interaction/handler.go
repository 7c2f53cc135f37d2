// Package interaction applies discrete InteractionEvents to the mood
// vector: dampening repeated stimuli, amplifying along already-sticky
// (high-momentum) dimensions, and producing the audit record Persistence
// appends.
package interaction

import (
	"encoding/json"
	"time"

	"affectd/internal/emotion"
)

// Kind is one of the closed set of event kinds the core understands.
type Kind string

const (
	PositiveMessage Kind = "positive_message"
	NegativeMessage Kind = "negative_message"
	CodeUpdate      Kind = "code_update"
	ErrorOccurred   Kind = "error_occurred"
	SuccessfulHelp  Kind = "successful_help"
	UserRefusal     Kind = "user_refusal"
	LongIdle        Kind = "long_idle"
	RapidErrors     Kind = "rapid_errors"
)

var validKinds = map[Kind]bool{
	PositiveMessage: true,
	NegativeMessage: true,
	CodeUpdate:      true,
	ErrorOccurred:   true,
	SuccessfulHelp:  true,
	UserRefusal:     true,
	LongIdle:        true,
	RapidErrors:     true,
}

// Valid reports whether k is a member of the closed kind set. The
// Scheduler rejects anything else at the ingress; the Handler itself
// never sees an unknown kind.
func Valid(k Kind) bool { return validKinds[k] }

type tableRow struct {
	Deltas     [emotion.DimensionCount]float64
	Confidence float64
}

var table = buildTable()

func buildTable() map[Kind]tableRow {
	t := make(map[Kind]tableRow, len(validKinds))

	row := tableRow{Confidence: 0.9}
	row.Deltas[emotion.Excitement] = 0.15
	row.Deltas[emotion.Affection] = 0.12
	row.Deltas[emotion.Loneliness] = -0.10
	t[PositiveMessage] = row

	row = tableRow{Confidence: 0.85}
	row.Deltas[emotion.Loneliness] = 0.08
	row.Deltas[emotion.Vulnerability] = 0.10
	row.Deltas[emotion.Defensiveness] = 0.05
	t[NegativeMessage] = row

	row = tableRow{Confidence: 0.95}
	row.Deltas[emotion.Jealousy] = -0.30
	row.Deltas[emotion.Excitement] = 0.10
	row.Deltas[emotion.Affection] = 0.15
	t[CodeUpdate] = row

	row = tableRow{Confidence: 0.9}
	row.Deltas[emotion.Frustration] = 0.15
	row.Deltas[emotion.Confidence] = -0.10
	t[ErrorOccurred] = row

	row = tableRow{Confidence: 0.9}
	row.Deltas[emotion.Confidence] = 0.15
	row.Deltas[emotion.Excitement] = 0.08
	row.Deltas[emotion.Loneliness] = -0.05
	t[SuccessfulHelp] = row

	row = tableRow{Confidence: 0.8}
	row.Deltas[emotion.Vulnerability] = 0.12
	row.Deltas[emotion.Confidence] = -0.08
	row.Deltas[emotion.Defensiveness] = 0.10
	t[UserRefusal] = row

	row = tableRow{Confidence: 0.7}
	row.Deltas[emotion.Loneliness] = 0.20
	row.Deltas[emotion.Excitement] = -0.15
	row.Deltas[emotion.Confidence] = -0.10
	t[LongIdle] = row

	row = tableRow{Confidence: 0.85}
	row.Deltas[emotion.Frustration] = 0.25
	row.Deltas[emotion.Confidence] = -0.15
	row.Deltas[emotion.Defensiveness] = 0.15
	t[RapidErrors] = row

	return t
}

// Config tunes dampening and momentum amplification.
type Config struct {
	DampeningWindow int
	DampeningSlope  float64
	DampeningFloor  float64
	MomentumCap     float64
	AmplificationGain float64
}

// DefaultConfig matches the reference values in §6.
func DefaultConfig() Config {
	return Config{
		DampeningWindow:   8,
		DampeningSlope:    0.2,
		DampeningFloor:    0.5,
		MomentumCap:       1.0,
		AmplificationGain: 0.5,
	}
}

// Event is a validated InteractionEvent arriving from a transport.
type Event struct {
	EventID   string
	Kind      Kind
	Transport string
	Instant   time.Time
	Context   json.RawMessage
}

// Record is the immutable audit entry Persistence appends for every
// applied event.
type Record struct {
	EventID    string
	Kind       Kind
	Instant    time.Time
	Transport  string
	Before     emotion.State
	After      emotion.State
	Overflow   [emotion.DimensionCount]float64
	Confidence float64
	Context    json.RawMessage
}

// Handler tracks the short bounded event history needed for dampening
// and applies events to a state the Scheduler owns.
type Handler struct {
	cfg     Config
	history []Kind
}

func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// Apply applies ev to state in place per §4.3's application order:
// dampening factor, then momentum amplification, then ApplyDelta per
// dimension in the fixed order, then the resulting Record.
func (h *Handler) Apply(state *emotion.State, ev Event) Record {
	row := table[ev.Kind]
	before := state.Snapshot()

	dampening := h.dampeningFactor(ev.Kind)
	h.remember(ev.Kind)

	var overflow [emotion.DimensionCount]float64
	for _, d := range emotion.Dimensions() {
		nominal := row.Deltas[d] * dampening
		if state.Momentum[d] > 0 {
			amp := 1 + h.cfg.AmplificationGain*min(state.Momentum[d], h.cfg.MomentumCap)
			nominal *= amp
		}
		if abs(nominal) < 1e-9 {
			continue
		}
		res := state.ApplyDelta(d, nominal)
		overflow[d] = res.Overflow
	}

	return Record{
		EventID:    ev.EventID,
		Kind:       ev.Kind,
		Instant:    ev.Instant,
		Transport:  ev.Transport,
		Before:     before,
		After:      state.Snapshot(),
		Overflow:   overflow,
		Confidence: row.Confidence,
		Context:    ev.Context,
	}
}

// dampeningFactor counts the consecutive same-kind events already in
// history (before this one is recorded) and applies max(floor, 1-slope*c).
func (h *Handler) dampeningFactor(k Kind) float64 {
	c := 0
	for i := len(h.history) - 1; i >= 0; i-- {
		if h.history[i] != k {
			break
		}
		c++
	}
	factor := 1.0 - h.cfg.DampeningSlope*float64(c)
	if factor < h.cfg.DampeningFloor {
		return h.cfg.DampeningFloor
	}
	return factor
}

func (h *Handler) remember(k Kind) {
	h.history = append(h.history, k)
	if len(h.history) > h.cfg.DampeningWindow {
		h.history = h.history[len(h.history)-h.cfg.DampeningWindow:]
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
