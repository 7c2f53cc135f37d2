package interaction

import (
	"math"
	"testing"
	"time"

	"affectd/internal/emotion"
)

func TestNeutralPlusSinglePositiveMessage(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	h := NewHandler(DefaultConfig())

	h.Apply(&s, Event{Kind: PositiveMessage, Transport: "test", Instant: now})

	assertNear(t, s.Values[emotion.Excitement], 0.65)
	assertNear(t, s.Values[emotion.Affection], 0.62)
	assertNear(t, s.Values[emotion.Loneliness], 0.40)
	assertNear(t, s.Values[emotion.Frustration], 0.5)
}

func TestDampeningSequenceMatchesReferenceMultipliers(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	h := NewHandler(DefaultConfig())

	want := []float64{0.15, 0.12, 0.09, 0.075, 0.075}
	var prev float64
	for i, expectedDelta := range want {
		before := s.Values[emotion.Excitement]
		rec := h.Apply(&s, Event{Kind: PositiveMessage, Transport: "test", Instant: now.Add(time.Duration(i) * time.Second)})
		// the fifth event reaches the 1.0 ceiling; the clipped overflow is
		// part of the dampened delta that was applied.
		realized := s.Values[emotion.Excitement] - before + rec.Overflow[emotion.Excitement]
		if math.Abs(realized-expectedDelta) > 0.0001 {
			t.Fatalf("event %d: realized delta=%.6f want=%.6f", i, realized, expectedDelta)
		}
		prev = before
	}
	_ = prev
}

func TestDampeningNeverGoesBelowFloorMultiplier(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	h := NewHandler(DefaultConfig())

	for i := 0; i < 20; i++ {
		s.Values[emotion.Excitement] = 0.5
		before := s.Values[emotion.Excitement]
		h.Apply(&s, Event{Kind: PositiveMessage, Transport: "test", Instant: now.Add(time.Duration(i) * time.Second)})
		realized := s.Values[emotion.Excitement] - before
		if realized < 0.075-1e-9 {
			t.Fatalf("event %d: realized delta %.6f dropped below the 0.5 floor multiplier", i, realized)
		}
	}
}

func TestMomentumAmplifiesSubsequentDeltaAlongSameAxis(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	s.Values[emotion.Excitement] = 0.95
	s.ApplyDelta(emotion.Excitement, 0.5) // forces overflow, momentum = 0.45

	h := NewHandler(DefaultConfig())
	s.Values[emotion.Excitement] = 0.5
	before := s.Values[emotion.Excitement]
	h.Apply(&s, Event{Kind: PositiveMessage, Transport: "test", Instant: now})
	realized := s.Values[emotion.Excitement] - before

	if realized <= 0.15 {
		t.Fatalf("expected momentum-amplified delta above nominal 0.15, got %.6f", realized)
	}
}

func TestOverflowRecordedInAuditRecord(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	s.Values[emotion.Excitement] = 0.95

	h := NewHandler(DefaultConfig())
	rec := h.Apply(&s, Event{Kind: PositiveMessage, Transport: "test", Instant: now})

	if rec.Overflow[emotion.Excitement] <= 0 {
		t.Fatalf("expected recorded overflow, got %v", rec.Overflow[emotion.Excitement])
	}
	assertNear(t, rec.Before.Values[emotion.Excitement], 0.95)
	assertNear(t, rec.After.Values[emotion.Excitement], 1.0)
}

func assertNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Fatalf("value mismatch: got=%.6f want=%.6f", got, want)
	}
}
