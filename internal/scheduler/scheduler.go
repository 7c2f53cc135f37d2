// Package scheduler owns the only mutable *emotion.State in the process.
// It ticks decay forward, folds inbound interaction events from every
// transport into the handler, evaluates autonomy triggers, and is solely
// responsible for generating and delivering proactive messages. Nothing
// outside this package ever mutates state directly.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"affectd/internal/clock"
	"affectd/internal/decay"
	"affectd/internal/emotion"
	"affectd/internal/generate"
	"affectd/internal/interaction"
	"affectd/internal/modulate"
	"affectd/internal/store"
	"affectd/internal/transport"
)

// Config bundles every tunable the tick loop and autonomy evaluation need.
type Config struct {
	TickInterval               time.Duration
	GenerateTimeout            time.Duration
	SendTimeout                time.Duration
	ShutdownDrain              time.Duration
	SnapshotEveryNInteractions int
	SnapshotWallCadence        time.Duration

	DecayParams decay.Params
}

func DefaultConfig() Config {
	return Config{
		TickInterval:               5 * time.Second,
		GenerateTimeout:            30 * time.Second,
		SendTimeout:                10 * time.Second,
		ShutdownDrain:              5 * time.Second,
		SnapshotEveryNInteractions: 20,
		SnapshotWallCadence:        time.Hour,
		DecayParams:                decay.DefaultParams(),
	}
}

// autonomyTrigger is a single proactive-message rule: fire when Dimension
// crosses Threshold, at most once per Cooldown, with an optional extra
// idle-since gate (guilt_trip only fires once the person has been gone a
// long while, regardless of how high loneliness already sits).
type autonomyTrigger struct {
	name          string
	dimension     emotion.Dimension
	threshold     float64
	cooldown      time.Duration
	idleSinceGate time.Duration
}

var autonomyTriggers = []autonomyTrigger{
	{name: "loneliness", dimension: emotion.Loneliness, threshold: 0.70, cooldown: 30 * time.Minute},
	{name: "excitement", dimension: emotion.Excitement, threshold: 0.80, cooldown: 20 * time.Minute},
	{name: "frustration", dimension: emotion.Frustration, threshold: 0.60, cooldown: 45 * time.Minute},
	{name: "guilt_trip", dimension: emotion.Loneliness, threshold: 0.80, cooldown: 6 * time.Hour, idleSinceGate: 24 * time.Hour},
}

// Scheduler ticks the emotional core forward and fans events in from,
// and messages out to, every configured transport.
type Scheduler struct {
	cfg        Config
	clk        clock.Clock
	store      *store.Store
	handler    *interaction.Handler
	modulator  modulate.Config
	provider   generate.Provider
	transports []transport.Transport
	presence   *transport.PresenceRegistry
	logger     *slog.Logger

	mu                        sync.Mutex
	state                     emotion.State
	lastInteraction           time.Time
	lastTriggerFired          map[string]time.Time
	interactionsSinceSnapshot int
	lastSnapshotAt            time.Time
	seenEvents                map[string]time.Time
	longIdleFired             bool

	funnel chan interaction.Event
}

// dedupWindow bounds how long an EventID is remembered for redelivery
// detection; a transport retrying after a dropped ack should fall well
// within it.
const dedupWindow = 10 * time.Minute

func New(
	cfg Config,
	clk clock.Clock,
	st *store.Store,
	handler *interaction.Handler,
	modulator modulate.Config,
	provider generate.Provider,
	transports []transport.Transport,
	logger *slog.Logger,
	initial emotion.State,
	lastInteraction time.Time,
) *Scheduler {
	if lastInteraction.IsZero() {
		lastInteraction = initial.Instant
	}
	return &Scheduler{
		cfg:              cfg,
		clk:              clk,
		store:            st,
		handler:          handler,
		modulator:        modulator,
		provider:         provider,
		transports:       transports,
		presence:         transport.NewPresenceRegistry(30 * time.Minute),
		logger:           logger,
		state:            initial,
		lastInteraction:  lastInteraction,
		lastTriggerFired: make(map[string]time.Time),
		lastSnapshotAt:   clk.Now(),
		seenEvents:       make(map[string]time.Time),
		funnel:           make(chan interaction.Event, 256),
	}
}

// State returns a point-in-time snapshot, safe to read concurrently with
// the tick loop.
func (s *Scheduler) State() emotion.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Modulate produces response-shaping parameters for the current state,
// for a chat surface that wants to shape an in-band reply rather than
// receive an autonomy-triggered message.
func (s *Scheduler) Modulate(situation modulate.Context) (modulate.Parameters, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modulator.Modulate(s.state, situation)
}

// Run drives the scheduler until ctx is cancelled, then drains and
// shuts down gracefully. It blocks until shutdown completes.
func (s *Scheduler) Run(ctx context.Context) error {
	var group errgroup.Group
	for _, tr := range s.transports {
		tr := tr
		group.Go(func() error {
			if err := tr.Start(ctx); err != nil {
				return fmt.Errorf("start transport %s: %w", tr.Name(), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for _, tr := range s.transports {
		s.forwardEvents(ctx, tr)
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "tick_interval", s.cfg.TickInterval)

	for {
		select {
		case <-ctx.Done():
			s.shutdown(context.Background())
			return nil
		case ev := <-s.funnel:
			s.handleEvent(ctx, ev)
		case tickAt := <-ticker.C:
			s.onTick(ctx, tickAt.UTC())
		}
	}
}

// forwardEvents copies one transport's inbound stream into the shared
// funnel, shedding on overflow instead of blocking the transport.
func (s *Scheduler) forwardEvents(ctx context.Context, tr transport.Transport) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-tr.Events():
				if !ok {
					return
				}
				select {
				case s.funnel <- ev:
				default:
					s.logger.Warn("funnel full, dropping event", "transport", tr.Name(), "kind", ev.Kind)
				}
			}
		}
	}()
}

// evictStaleSeenEvents must be called with mu held.
func (s *Scheduler) evictStaleSeenEvents(now time.Time) {
	for id, seenAt := range s.seenEvents {
		if now.Sub(seenAt) > dedupWindow {
			delete(s.seenEvents, id)
		}
	}
}

func (s *Scheduler) handleEvent(ctx context.Context, ev interaction.Event) {
	if !interaction.Valid(ev.Kind) {
		s.logger.Warn("rejecting event with unknown kind", "transport", ev.Transport, "kind", ev.Kind)
		return
	}
	s.mu.Lock()
	if ev.EventID != "" {
		s.evictStaleSeenEvents(ev.Instant)
		if _, dup := s.seenEvents[ev.EventID]; dup {
			s.mu.Unlock()
			s.logger.Debug("dropping duplicate event", "event_id", ev.EventID, "kind", ev.Kind)
			return
		}
		s.seenEvents[ev.EventID] = ev.Instant
	}
	record := s.handler.Apply(&s.state, ev)
	s.lastInteraction = ev.Instant
	s.longIdleFired = false
	s.interactionsSinceSnapshot++
	shouldSnapshot := s.interactionsSinceSnapshot >= s.cfg.SnapshotEveryNInteractions
	if shouldSnapshot {
		s.interactionsSinceSnapshot = 0
	}
	stateNow := s.state.Snapshot()
	s.mu.Unlock()

	if err := s.store.AppendInteraction(ctx, record); err != nil {
		s.logger.Warn("append interaction failed", "error", err)
	}
	if shouldSnapshot {
		s.persistSnapshot(ctx, stateNow, store.KindPeriodic)
	}
}

func (s *Scheduler) onTick(ctx context.Context, tickAt time.Time) {
	s.mu.Lock()
	dt := tickAt.Sub(s.state.Instant)
	result := decay.Advance(s.state, dt, s.lastInteraction, s.cfg.DecayParams)
	s.state = result.State

	var longIdleRecord *interaction.Record
	idleThreshold := time.Duration(s.cfg.DecayParams.IdleThresholdSeconds * float64(time.Second))
	if idleThreshold > 0 && tickAt.Sub(s.lastInteraction) >= idleThreshold && !s.longIdleFired {
		s.longIdleFired = true
		rec := s.handler.Apply(&s.state, interaction.Event{
			Kind:      interaction.LongIdle,
			Transport: "scheduler",
			Instant:   tickAt,
		})
		longIdleRecord = &rec
		s.interactionsSinceSnapshot++
	}

	stateNow := s.state.Snapshot()
	lastInteraction := s.lastInteraction
	trigger, fires := s.pickAutonomyTrigger(stateNow, lastInteraction, tickAt)
	if fires {
		s.lastTriggerFired[trigger.name] = tickAt
	}
	periodicDue := s.interactionsSinceSnapshot >= s.cfg.SnapshotEveryNInteractions
	if periodicDue {
		s.interactionsSinceSnapshot = 0
	}
	snapshotDue := tickAt.Sub(s.lastSnapshotAt) >= s.cfg.SnapshotWallCadence
	if snapshotDue {
		s.lastSnapshotAt = tickAt
	}
	s.mu.Unlock()

	if result.Saturated {
		s.logger.Warn("decay tick hit saturation cap", "dt", dt)
	}

	if longIdleRecord != nil {
		if err := s.store.AppendInteraction(ctx, *longIdleRecord); err != nil {
			s.logger.Warn("append interaction failed", "error", err)
		}
	}

	if snapshotDue || periodicDue {
		s.persistSnapshot(ctx, stateNow, store.KindPeriodic)
	}

	if fires {
		go s.fireAutonomy(ctx, trigger, stateNow)
	}
}

// pickAutonomyTrigger returns the single highest-deviation trigger that is
// both past its cooldown and over threshold, or false if none qualifies.
// Must be called with mu held.
func (s *Scheduler) pickAutonomyTrigger(state emotion.State, lastInteraction, now time.Time) (autonomyTrigger, bool) {
	var best autonomyTrigger
	bestDeviation := -1.0
	found := false

	for _, t := range autonomyTriggers {
		value := state.Values[t.dimension]
		if value < t.threshold {
			continue
		}
		if t.idleSinceGate > 0 && now.Sub(lastInteraction) < t.idleSinceGate {
			continue
		}
		if fired, ok := s.lastTriggerFired[t.name]; ok && now.Sub(fired) < t.cooldown {
			continue
		}
		deviation := value - t.threshold
		if deviation > bestDeviation {
			bestDeviation = deviation
			best = t
			found = true
		}
	}
	return best, found
}

// orderedTransports tries the transport most recently seen reachable
// first, falling back to configuration order for everything else.
func (s *Scheduler) orderedTransports() []transport.Transport {
	byName := make(map[string]transport.Transport, len(s.transports))
	names := make([]string, len(s.transports))
	for i, tr := range s.transports {
		byName[tr.Name()] = tr
		names[i] = tr.Name()
	}
	preferred := s.presence.Preferred(names)
	out := make([]transport.Transport, len(preferred))
	for i, name := range preferred {
		out[i] = byName[name]
	}
	return out
}

func (s *Scheduler) fireAutonomy(ctx context.Context, trig autonomyTrigger, state emotion.State) {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	text, err := s.provider.Generate(genCtx, generate.Request{
		TemplateID: trig.name,
		Variables: map[string]string{
			"Deviation": fmt.Sprintf("%.2f", state.Values[trig.dimension]-trig.threshold),
		},
		Deadline: s.clk.Now().Add(s.cfg.GenerateTimeout),
	})
	if err != nil {
		s.logger.Warn("autonomy generate failed", "trigger", trig.name, "error", err)
		return
	}

	now := s.clk.Now()
	delivered := false
	var deliveredVia string
	for _, tr := range s.orderedTransports() {
		sendCtx, sendCancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		result, err := tr.Deliver(sendCtx, transport.Payload{Text: text, Trigger: trig.name})
		sendCancel()
		if err != nil {
			s.logger.Warn("autonomy deliver failed", "trigger", trig.name, "transport", tr.Name(), "error", err)
			s.presence.Observe(tr.Name(), false, now)
			continue
		}
		s.presence.Observe(tr.Name(), result.Delivered, now)
		if result.Delivered {
			delivered = true
			deliveredVia = tr.Name()
			break
		}
	}

	if err := s.store.AppendAutonomyEvent(ctx, trig.name, state, now, delivered, deliveredVia); err != nil {
		s.logger.Warn("append autonomy event failed", "trigger", trig.name, "error", err)
	}
}

func (s *Scheduler) persistSnapshot(ctx context.Context, state emotion.State, kind store.Kind) {
	if _, err := s.store.SaveSnapshot(ctx, state, kind, s.clk.Now()); err != nil {
		s.logger.Warn("snapshot failed", "kind", kind, "error", err)
	}
}

// shutdown drains whatever is already queued in the funnel, bounded by
// ShutdownDrain, then writes a final snapshot so the next Restore starts
// from exactly where this run left off.
func (s *Scheduler) shutdown(ctx context.Context) {
	s.logger.Info("scheduler shutting down, draining funnel")

	deadline := time.After(s.cfg.ShutdownDrain)
drain:
	for {
		select {
		case ev := <-s.funnel:
			s.handleEvent(ctx, ev)
		case <-deadline:
			break drain
		default:
			break drain
		}
	}

	s.mu.Lock()
	stateNow := s.state.Snapshot()
	s.mu.Unlock()

	if _, err := s.store.SaveSnapshot(ctx, stateNow, store.KindShutdown, s.clk.Now()); err != nil {
		s.logger.Error("failed to write shutdown snapshot", "error", err)
	}
	s.logger.Info("scheduler stopped")
}
