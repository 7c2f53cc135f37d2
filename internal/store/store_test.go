package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"affectd/internal/decay"
	"affectd/internal/emotion"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "affect.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestRestoreWithNoSnapshotReturnsNeutralBaseline(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	result, err := s.Restore(ctx, now, decay.DefaultParams())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	for _, d := range emotion.Dimensions() {
		if result.State.Values[d] != 0.5 {
			t.Fatalf("expected neutral baseline, dimension %s = %v", d, result.State.Values[d])
		}
	}

	startup, err := s.LatestSnapshot(ctx, KindStartup)
	if err != nil {
		t.Fatalf("expected a startup snapshot to have been written: %v", err)
	}
	if startup.Kind != KindStartup {
		t.Fatalf("expected startup kind, got %s", startup.Kind)
	}
}

func TestRestoreAgesStateAcrossOfflineGap(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	t0 := time.Now().UTC().Add(-6 * time.Hour)
	before := emotion.Neutral(t0)
	before.Values[emotion.Loneliness] = 0.6
	before.Values[emotion.Excitement] = 0.8
	if _, err := s.SaveSnapshot(ctx, before, KindShutdown, t0); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	now := t0.Add(6 * time.Hour)
	result, err := s.Restore(ctx, now, decay.DefaultParams())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	direct := decay.Advance(before, now.Sub(t0), t0, decay.DefaultParams())
	for _, d := range emotion.Dimensions() {
		if abs(result.State.Values[d]-direct.State.Values[d]) > 1e-9 {
			t.Fatalf("restore diverged from direct decay on %s: restore=%v direct=%v", d, result.State.Values[d], direct.State.Values[d])
		}
	}
}

func TestAppendAutonomyEvent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	state := emotion.Neutral(now)

	if err := s.AppendAutonomyEvent(ctx, "loneliness", state, now, true, "mqtt"); err != nil {
		t.Fatalf("append autonomy event: %v", err)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
