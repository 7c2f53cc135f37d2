package emotion

import (
	"math"
	"testing"
	"time"
)

func TestNeutralIsAllOneHalf(t *testing.T) {
	s := Neutral(time.Now())
	for _, d := range Dimensions() {
		assertNear(t, s.Values[d], 0.5)
		assertNear(t, s.Momentum[d], 0)
	}
}

func TestApplyDeltaOverflowRaisesMomentum(t *testing.T) {
	s := Neutral(time.Now())
	s.Values[Excitement] = 0.95
	result := s.ApplyDelta(Excitement, 0.2)

	assertNear(t, s.Values[Excitement], 1.0)
	assertNear(t, result.Overflow, 0.15)
	assertNear(t, s.Momentum[Excitement], 0.15)
}

func TestApplyDeltaMomentumOnlyGrows(t *testing.T) {
	s := Neutral(time.Now())
	s.Values[Excitement] = 0.9
	s.ApplyDelta(Excitement, 0.2) // overflow 0.1
	assertNear(t, s.Momentum[Excitement], 0.1)

	s.Values[Excitement] = 0.95
	s.ApplyDelta(Excitement, 0.02) // overflow 0 < momentum, momentum must not shrink
	assertNear(t, s.Momentum[Excitement], 0.1)
}

func TestApplyDeltaFloorClampDoesNotTouchMomentum(t *testing.T) {
	s := Neutral(time.Now())
	s.Values[Loneliness] = Floor(Loneliness)
	result := s.ApplyDelta(Loneliness, -0.5)

	assertNear(t, s.Values[Loneliness], Floor(Loneliness))
	assertNear(t, result.Overflow, 0)
	assertNear(t, s.Momentum[Loneliness], 0)
}

func TestClearMomentumSingleDimension(t *testing.T) {
	s := Neutral(time.Now())
	s.Values[Excitement] = 0.95
	s.ApplyDelta(Excitement, 0.3)
	if s.Momentum[Excitement] == 0 {
		t.Fatalf("expected nonzero momentum before clear")
	}
	d := Excitement
	s.ClearMomentum(&d)
	if s.Momentum[Excitement] != 0 {
		t.Fatalf("expected momentum cleared, got %v", s.Momentum[Excitement])
	}
}

func TestClearMomentumAll(t *testing.T) {
	s := Neutral(time.Now())
	s.Values[Excitement] = 0.95
	s.ApplyDelta(Excitement, 0.3)
	s.Values[Frustration] = 0.95
	s.ApplyDelta(Frustration, 0.3)

	s.ClearMomentum(nil)
	for _, d := range Dimensions() {
		if s.Momentum[d] != 0 {
			t.Fatalf("expected all momentum cleared, dimension %s has %v", d, s.Momentum[d])
		}
	}
}

func TestSnapshotIsAliasFree(t *testing.T) {
	s := Neutral(time.Now())
	snap := s.Snapshot()
	s.Values[Excitement] = 0.99
	if snap.Values[Excitement] == 0.99 {
		t.Fatalf("snapshot aliased the live state")
	}
}

func TestDominantEmotionsTieBreakByDimensionOrder(t *testing.T) {
	s := Neutral(time.Now())
	s.Values[Excitement] = 0.75
	s.Values[Affection] = 0.25
	top := s.DominantEmotions(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Dimension != Excitement || top[1].Dimension != Affection {
		t.Fatalf("unexpected ranking: %+v", top)
	}
}

func assertNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Fatalf("value mismatch: got=%.6f want=%.6f", got, want)
	}
}
