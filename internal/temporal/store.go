package temporal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"cortexstore/internal/config"
	"cortexstore/internal/errs"
	"cortexstore/internal/model"
	"cortexstore/internal/query"
	"cortexstore/internal/storage"
)

// DefaultSnapshotEventThreshold is the number of events since the last
// snapshot after which Store.Append creates a new one when the caller
// doesn't configure one, bounding replay cost on long event chains.
const DefaultSnapshotEventThreshold = 30

// Store wraps a storage.Manager with the replay/reconstruction operations of
// the temporal event store (§4.5).
type Store struct {
	mgr                     *storage.Manager
	snapshotEventThreshold  int
	maxCausalTraversalDepth int
}

// NewStore builds a Store over mgr, reading TemporalConfig.
func NewStore(mgr *storage.Manager, cfg config.TemporalConfig) *Store {
	threshold := cfg.SnapshotEventThreshold
	if threshold <= 0 {
		threshold = DefaultSnapshotEventThreshold
	}
	depth := cfg.MaxCausalTraversalDepth
	if depth <= 0 {
		depth = DefaultCausalTraversalDepth
	}
	return &Store{mgr: mgr, snapshotEventThreshold: threshold, maxCausalTraversalDepth: depth}
}

// TraverseCausal runs the bounded-depth BFS causal traversal rooted at
// rootID against the reader pool, using TemporalConfig.MaxCausalTraversalDepth
// unless maxDepth overrides it (maxDepth <= 0 keeps the configured default).
func (s *Store) TraverseCausal(ctx context.Context, rootID string, maxDepth int) (CausalTrace, error) {
	if maxDepth <= 0 {
		maxDepth = s.maxCausalTraversalDepth
	}
	var trace CausalTrace
	err := s.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		t, err := TraverseCausal(ctx, db, rootID, maxDepth)
		if err != nil {
			return err
		}
		trace = t
		return nil
	})
	return trace, err
}

// Append records e against the writer connection, creating a new snapshot if
// the event-count threshold since the last one has been crossed.
func (s *Store) Append(ctx context.Context, e model.MemoryEvent) error {
	const op = "temporal.Store.Append"
	if e.SchemaVersion == 0 {
		e.SchemaVersion = model.CurrentSchemaVersion
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	return s.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		if err := query.AppendEvent(ctx, db, e); err != nil {
			return err
		}

		due, err := s.snapshotDue(ctx, db, e.MemoryID, e.RecordedAt)
		if err != nil {
			return err
		}
		if !due {
			return nil
		}
		return s.createSnapshotTx(ctx, db, e.MemoryID, e.RecordedAt, model.SnapshotReasonEventThreshold, op)
	})
}

// snapshotDue reports whether SnapshotEventThreshold events have accumulated
// since the latest snapshot at or before asOf.
func (s *Store) snapshotDue(ctx context.Context, db *sql.DB, memoryID string, asOf time.Time) (bool, error) {
	since, err := s.eventsSince(ctx, db, memoryID, asOf)
	if err != nil {
		return false, err
	}
	return len(since) >= s.snapshotEventThreshold, nil
}

// eventsSince returns memoryID's events recorded after the latest snapshot
// at or before asOf (or the full log, if no snapshot exists yet).
func (s *Store) eventsSince(ctx context.Context, db *sql.DB, memoryID string, asOf time.Time) ([]model.MemoryEvent, error) {
	snap, ok, err := query.LatestSnapshotBefore(ctx, db, memoryID, asOf)
	if err != nil {
		return nil, err
	}

	events, err := query.ListEvents(ctx, db, memoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return events, nil
	}

	var out []model.MemoryEvent
	for _, e := range events {
		if e.RecordedAt.After(snap.AsOf) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) createSnapshotTx(ctx context.Context, db *sql.DB, memoryID string, asOf time.Time, reason model.SnapshotReason, op string) error {
	state, err := s.reconstructWith(ctx, db, memoryID, asOf)
	if err != nil {
		return err
	}
	full, err := json.Marshal(state)
	if err != nil {
		return errs.Deserialization(op, "full_state", err.Error())
	}
	return query.InsertSnapshot(ctx, db, model.Snapshot{
		MemoryID:  memoryID,
		AsOf:      asOf,
		FullState: full,
		Reason:    reason,
	})
}

// ReconstructAt returns memoryID's state as of target. The invariant this
// preserves: reconstruct_at(target) == replay(all events <= target, shell),
// regardless of which (if any) snapshot accelerates the computation.
func (s *Store) ReconstructAt(ctx context.Context, memoryID string, target time.Time) (model.BaseMemory, error) {
	var state model.BaseMemory
	err := s.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		st, err := s.reconstructWith(ctx, db, memoryID, target)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	return state, err
}

func (s *Store) reconstructWith(ctx context.Context, db *sql.DB, memoryID string, target time.Time) (model.BaseMemory, error) {
	const op = "temporal.Store.ReconstructAt"

	shell := Shell(memoryID)

	snap, ok, err := query.LatestSnapshotBefore(ctx, db, memoryID, target)
	if err != nil {
		return model.BaseMemory{}, err
	}
	if ok {
		if err := json.Unmarshal(snap.FullState, &shell); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "full_state", err.Error())
		}
	}

	events, err := query.ListEvents(ctx, db, memoryID)
	if err != nil {
		return model.BaseMemory{}, err
	}

	var inRange []model.MemoryEvent
	for _, e := range events {
		if ok && !e.RecordedAt.After(snap.AsOf) {
			continue
		}
		if e.RecordedAt.After(target) {
			break
		}
		inRange = append(inRange, e)
	}

	return Replay(inRange, shell)
}

// CreateSnapshot forces a snapshot of memoryID as of now, independent of the
// event-count threshold (e.g. before a bulk migration or an operator-driven
// checkpoint).
func (s *Store) CreateSnapshot(ctx context.Context, memoryID string) error {
	return s.CreateSnapshotAt(ctx, memoryID, time.Now().UTC(), model.SnapshotReasonManual)
}

// CreateSnapshotAt forces a snapshot of memoryID as of the given timestamp
// under reason, the primitive the materialized view engine uses to snapshot
// every memory at a named point in time (§4.8).
func (s *Store) CreateSnapshotAt(ctx context.Context, memoryID string, asOf time.Time, reason model.SnapshotReason) error {
	const op = "temporal.Store.CreateSnapshotAt"
	return s.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		return s.createSnapshotTx(ctx, db, memoryID, asOf, reason, op)
	})
}
