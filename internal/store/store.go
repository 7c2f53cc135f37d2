// Package store is the Affect Core's Persistence component: a single
// embedded durable store (modernc.org/sqlite, pure Go, no external
// server) holding three append-mostly relations — snapshots,
// interactions, autonomy_events — plus the cold-start restore protocol.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"affectd/internal/decay"
	"affectd/internal/emotion"
	"affectd/internal/interaction"
)

var (
	ErrNoSnapshot      = errors.New("no snapshot available")
	ErrCorruptSnapshot = errors.New("snapshot failed to deserialize")
)

const stateVersion = 1

// Kind identifies why a snapshot was written.
type Kind string

const (
	KindPeriodic Kind = "periodic"
	KindShutdown Kind = "shutdown"
	KindStartup  Kind = "startup"
	KindManual   Kind = "manual"
)

// Snapshot is a durable record of the full EmotionState at an instant.
type Snapshot struct {
	Generation int64
	Instant    time.Time
	Kind       Kind
	State      emotion.State
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the single sqlite file at path.
// WAL mode matches the write discipline of §4.5: every mutation commits
// atomically, and there is never concurrent writer contention because
// writes are serialized through the Scheduler, not through the store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// IntegrityCheck runs sqlite's built-in integrity check. A non-nil error
// here is the trigger for the backup recovery walk in §4.5.
func (s *Store) IntegrityCheck(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check;`).Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("sqlite integrity check failed: %s", result)
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			generation INTEGER PRIMARY KEY AUTOINCREMENT,
			instant TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			state_blob BLOB NOT NULL,
			version INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_kind_instant ON snapshots(kind, instant);`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT,
			instant TEXT NOT NULL,
			kind TEXT NOT NULL,
			transport TEXT NOT NULL,
			before_blob BLOB NOT NULL,
			after_blob BLOB NOT NULL,
			overflow_blob BLOB NOT NULL,
			confidence REAL NOT NULL,
			context_blob BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_instant ON interactions(instant);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_kind ON interactions(kind);`,
		`CREATE TABLE IF NOT EXISTS autonomy_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instant TEXT NOT NULL,
			trigger TEXT NOT NULL,
			state_blob BLOB NOT NULL,
			delivered INTEGER NOT NULL,
			transport TEXT NOT NULL
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot writes a snapshot row. generation is assigned by sqlite's
// autoincrement and is therefore monotonic across the store's lifetime,
// including across restarts.
func (s *Store) SaveSnapshot(ctx context.Context, state emotion.State, kind Kind, instant time.Time) (int64, error) {
	blob, err := encodeState(state)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots(instant, kind, state_blob, version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instant) DO UPDATE SET kind=excluded.kind, state_blob=excluded.state_blob, version=excluded.version
	`, instant.UTC().Format(time.RFC3339Nano), string(kind), blob, stateVersion)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) LatestSnapshot(ctx context.Context, kind Kind) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT generation, instant, kind, state_blob
		FROM snapshots
		WHERE kind = ?
		ORDER BY generation DESC
		LIMIT 1
	`, string(kind))
	return scanSnapshot(row)
}

func (s *Store) LatestSnapshotAnyKind(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT generation, instant, kind, state_blob
		FROM snapshots
		ORDER BY generation DESC
		LIMIT 1
	`)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (Snapshot, error) {
	var out Snapshot
	var instantRaw, kindRaw string
	var blob []byte
	if err := row.Scan(&out.Generation, &instantRaw, &kindRaw, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, err
	}
	instant, err := time.Parse(time.RFC3339Nano, instantRaw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	state, err := decodeState(blob)
	if err != nil {
		return Snapshot{}, err
	}
	out.Instant = instant
	out.Kind = Kind(kindRaw)
	out.State = state
	return out, nil
}

// RecoverFromBackup walks periodic/shutdown snapshots backward by
// generation until one deserializes cleanly. Called after IntegrityCheck
// fails.
func (s *Store) RecoverFromBackup(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT generation, instant, kind, state_blob
		FROM snapshots
		WHERE kind IN (?, ?)
		ORDER BY generation DESC
	`, string(KindPeriodic), string(KindShutdown))
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var out Snapshot
		var instantRaw, kindRaw string
		var blob []byte
		if err := rows.Scan(&out.Generation, &instantRaw, &kindRaw, &blob); err != nil {
			continue
		}
		instant, err := time.Parse(time.RFC3339Nano, instantRaw)
		if err != nil {
			continue
		}
		state, err := decodeState(blob)
		if err != nil {
			continue
		}
		out.Instant = instant
		out.Kind = Kind(kindRaw)
		out.State = state
		return out, nil
	}
	return Snapshot{}, ErrNoSnapshot
}

func (s *Store) AppendInteraction(ctx context.Context, rec interaction.Record) error {
	before, err := encodeState(rec.Before)
	if err != nil {
		return err
	}
	after, err := encodeState(rec.After)
	if err != nil {
		return err
	}
	overflow, err := json.Marshal(rec.Overflow)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interactions(event_id, instant, kind, transport, before_blob, after_blob, overflow_blob, confidence, context_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.EventID, rec.Instant.UTC().Format(time.RFC3339Nano), string(rec.Kind), rec.Transport, before, after, overflow, rec.Confidence, []byte(rec.Context))
	return err
}

func (s *Store) AppendAutonomyEvent(ctx context.Context, trigger string, state emotion.State, instant time.Time, delivered bool, transport string) error {
	blob, err := encodeState(state)
	if err != nil {
		return err
	}
	deliveredInt := 0
	if delivered {
		deliveredInt = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO autonomy_events(instant, trigger, state_blob, delivered, transport)
		VALUES (?, ?, ?, ?, ?)
	`, instant.UTC().Format(time.RFC3339Nano), trigger, blob, deliveredInt, transport)
	return err
}

// RestoreResult is the outcome of a cold-start Restore or RecoverAndRestore.
type RestoreResult struct {
	State     emotion.State
	Saturated bool
}

// Restore implements the §4.5 cold-start protocol: prefer the latest
// shutdown snapshot, else the latest snapshot of any kind, else a fresh
// neutral baseline with no aging. The chosen snapshot is aged forward to
// now and a startup snapshot is written with the aged state.
func (s *Store) Restore(ctx context.Context, now time.Time, params decay.Params) (RestoreResult, error) {
	snap, err := s.LatestSnapshot(ctx, KindShutdown)
	if errors.Is(err, ErrNoSnapshot) {
		snap, err = s.LatestSnapshotAnyKind(ctx)
	}
	if errors.Is(err, ErrNoSnapshot) {
		fresh := emotion.Neutral(now)
		if _, werr := s.SaveSnapshot(ctx, fresh, KindStartup, now); werr != nil {
			return RestoreResult{}, werr
		}
		return RestoreResult{State: fresh}, nil
	}
	if err != nil {
		return RestoreResult{}, err
	}

	dt := now.Sub(snap.Instant)
	if dt < 0 {
		dt = 0
	}
	aged := decay.Advance(snap.State, dt, snap.Instant, params)
	if aged.Saturated {
		if err := s.AppendAutonomyEvent(ctx, "saturated_catchup", aged.State, now, false, ""); err != nil {
			return RestoreResult{}, err
		}
	}
	if _, err := s.SaveSnapshot(ctx, aged.State, KindStartup, now); err != nil {
		return RestoreResult{}, err
	}
	return RestoreResult{State: aged.State, Saturated: aged.Saturated}, nil
}

// RecoverAndRestore is used when IntegrityCheck fails: it walks backward
// across periodic/shutdown snapshots until one deserializes, ages it
// forward, and records recovered_from_backup.
func (s *Store) RecoverAndRestore(ctx context.Context, now time.Time, params decay.Params) (RestoreResult, error) {
	snap, err := s.RecoverFromBackup(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return RestoreResult{State: emotion.Neutral(now)}, nil
	}
	if err != nil {
		return RestoreResult{}, err
	}

	dt := now.Sub(snap.Instant)
	if dt < 0 {
		dt = 0
	}
	aged := decay.Advance(snap.State, dt, snap.Instant, params)
	if err := s.AppendAutonomyEvent(ctx, "recovered_from_backup", aged.State, now, false, ""); err != nil {
		return RestoreResult{}, err
	}
	return RestoreResult{State: aged.State, Saturated: aged.Saturated}, nil
}

type stateDoc struct {
	Version  int                `json:"version"`
	Values   map[string]float64 `json:"values"`
	Momentum map[string]float64 `json:"momentum"`
	Instant  string             `json:"instant"`
}

func encodeState(s emotion.State) ([]byte, error) {
	doc := stateDoc{
		Version:  stateVersion,
		Values:   make(map[string]float64, emotion.DimensionCount),
		Momentum: make(map[string]float64, emotion.DimensionCount),
		Instant:  s.Instant.UTC().Format(time.RFC3339Nano),
	}
	for _, d := range emotion.Dimensions() {
		doc.Values[d.String()] = s.Values[d]
		doc.Momentum[d.String()] = s.Momentum[d]
	}
	return json.Marshal(doc)
}

func decodeState(raw []byte) (emotion.State, error) {
	var doc stateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return emotion.State{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if doc.Version != stateVersion {
		return emotion.State{}, fmt.Errorf("%w: unknown version %d", ErrCorruptSnapshot, doc.Version)
	}
	instant, err := time.Parse(time.RFC3339Nano, doc.Instant)
	if err != nil {
		return emotion.State{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	var s emotion.State
	s.Instant = instant
	for _, d := range emotion.Dimensions() {
		v, ok := doc.Values[d.String()]
		if !ok {
			return emotion.State{}, fmt.Errorf("%w: missing dimension %s", ErrCorruptSnapshot, d)
		}
		s.Values[d] = v
		s.Momentum[d] = doc.Momentum[d.String()]
	}
	return s, nil
}
