package scheduler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"affectd/internal/clock"
	"affectd/internal/emotion"
	"affectd/internal/generate"
	"affectd/internal/interaction"
	"affectd/internal/modulate"
	"affectd/internal/store"
	"affectd/internal/transport"
)

type stubProvider struct {
	calls int
	text  string
}

func (p *stubProvider) Generate(ctx context.Context, req generate.Request) (string, error) {
	p.calls++
	return p.text, nil
}

type stubTransport struct {
	name      string
	events    chan interaction.Event
	delivered []transport.Payload
}

func newStubTransport(name string) *stubTransport {
	return &stubTransport{name: name, events: make(chan interaction.Event, 8)}
}

func (t *stubTransport) Name() string                 { return t.name }
func (t *stubTransport) Start(ctx context.Context) error { return nil }
func (t *stubTransport) Events() <-chan interaction.Event { return t.events }
func (t *stubTransport) Deliver(ctx context.Context, payload transport.Payload) (transport.DeliverResult, error) {
	t.delivered = append(t.delivered, payload)
	return transport.DeliverResult{Delivered: true}, nil
}

func newTestScheduler(t *testing.T, start time.Time) (*Scheduler, *stubProvider, *stubTransport, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "affect.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	provider := &stubProvider{text: "hi"}
	tr := newStubTransport("stub")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := DefaultConfig()
	cfg.TickInterval = time.Second
	cfg.SnapshotEveryNInteractions = 1000
	cfg.SnapshotWallCadence = 24 * time.Hour

	initial := emotion.Neutral(start)
	sched := New(cfg, clock.NewVirtual(start), st, interaction.NewHandler(interaction.DefaultConfig()),
		modulate.DefaultConfig(), provider, []transport.Transport{tr}, logger, initial, start)
	return sched, provider, tr, st
}

func TestOnTickAdvancesDecay(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, _, _, _ := newTestScheduler(t, start)

	sched.mu.Lock()
	sched.state.Values[emotion.Excitement] = 0.9
	sched.mu.Unlock()

	sched.onTick(context.Background(), start.Add(10*time.Minute))

	state := sched.State()
	if state.Values[emotion.Excitement] >= 0.9 {
		t.Fatalf("expected excitement to decay toward 0.5, got %v", state.Values[emotion.Excitement])
	}
}

func TestAutonomyTriggerFiresAndRespectsCooldown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, provider, tr, st := newTestScheduler(t, start)

	sched.mu.Lock()
	sched.state.Values[emotion.Loneliness] = 0.9
	sched.mu.Unlock()

	ctx := context.Background()
	sched.onTick(ctx, start.Add(time.Second))

	trig, fires := func() (autonomyTrigger, bool) {
		sched.mu.Lock()
		defer sched.mu.Unlock()
		return sched.pickAutonomyTrigger(sched.state, sched.lastInteraction, start.Add(time.Second))
	}()
	if fires {
		t.Fatalf("expected cooldown to block an immediate second firing, got trigger %s", trig.name)
	}

	// allow the async fireAutonomy goroutine from onTick to complete.
	time.Sleep(50 * time.Millisecond)

	if provider.calls == 0 {
		t.Fatalf("expected autonomy generate to have been called")
	}
	if len(tr.delivered) == 0 {
		t.Fatalf("expected autonomy delivery to have been attempted")
	}

	events, err := st.LatestSnapshotAnyKind(ctx)
	_ = events
	if err != nil && err != store.ErrNoSnapshot {
		t.Fatalf("unexpected snapshot lookup error: %v", err)
	}
}

func TestAutonomyPicksHighestDeviationTrigger(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, _, _, _ := newTestScheduler(t, start)

	sched.mu.Lock()
	sched.state.Values[emotion.Loneliness] = 0.75
	sched.state.Values[emotion.Excitement] = 0.95
	trig, fires := sched.pickAutonomyTrigger(sched.state, sched.lastInteraction, start)
	sched.mu.Unlock()

	if !fires {
		t.Fatalf("expected a trigger to fire")
	}
	if trig.name != "excitement" {
		t.Fatalf("expected excitement to win on higher deviation, got %s", trig.name)
	}
}

func TestHandleEventAppliesInteraction(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, _, _, _ := newTestScheduler(t, start)

	sched.handleEvent(context.Background(), interaction.Event{
		Kind:      interaction.PositiveMessage,
		Transport: "stub",
		Instant:   start.Add(time.Minute),
	})

	state := sched.State()
	if state.Values[emotion.Excitement] <= 0.5 {
		t.Fatalf("expected excitement to rise after a positive message, got %v", state.Values[emotion.Excitement])
	}
}
