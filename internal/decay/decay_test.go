package decay

import (
	"math"
	"testing"
	"time"

	"affectd/internal/emotion"
)

func TestDecayingAtFloorStaysAtFloor(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	s.Values[emotion.Excitement] = emotion.Floor(emotion.Excitement)

	result := Advance(s, 2*time.Hour, now, DefaultParams())
	assertNear(t, result.State.Values[emotion.Excitement], emotion.Floor(emotion.Excitement))
}

func TestDecayRespectsFloorsAndCeiling(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	for _, d := range emotion.Dimensions() {
		s.Values[d] = emotion.Floor(d)
	}
	result := Advance(s, 10*time.Minute, now, DefaultParams())
	for _, d := range emotion.Dimensions() {
		if result.State.Values[d] < emotion.Floor(d) || result.State.Values[d] > 1.0 {
			t.Fatalf("dimension %s out of bounds: %v", d, result.State.Values[d])
		}
	}
}

func TestSaturationCapDiscardsExcessDuration(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	s.Values[emotion.Excitement] = 0.9

	params := DefaultParams()
	atCap := Advance(s, 30*24*time.Hour, now, params)
	beyondCap := Advance(s, 45*24*time.Hour, now, params)

	if !beyondCap.Saturated {
		t.Fatalf("expected saturated_catchup marker past the cap")
	}
	if atCap.Saturated {
		t.Fatalf("did not expect saturation exactly at the cap")
	}
	assertNear(t, atCap.State.Values[emotion.Excitement], beyondCap.State.Values[emotion.Excitement])
}

func TestIdleDriftRaisesLonelinessAndLowersExcitement(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)

	result := Advance(s, time.Hour, now, DefaultParams())

	if result.State.Values[emotion.Loneliness] <= 0.5 {
		t.Fatalf("expected loneliness to rise under idle drift, got %v", result.State.Values[emotion.Loneliness])
	}
	if result.State.Values[emotion.Excitement] >= 0.5 {
		t.Fatalf("expected excitement to fall under idle drift, got %v", result.State.Values[emotion.Excitement])
	}
}

func TestZeroDurationIsNoOp(t *testing.T) {
	now := time.Now().UTC()
	s := emotion.Neutral(now)
	s.Values[emotion.Frustration] = 0.77
	result := Advance(s, 0, now, DefaultParams())
	assertNear(t, result.State.Values[emotion.Frustration], 0.77)
}

func assertNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Fatalf("value mismatch: got=%.6f want=%.6f", got, want)
	}
}
