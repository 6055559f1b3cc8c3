package temporal

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortexstore/internal/config"
	"cortexstore/internal/model"
	"cortexstore/internal/query"
	"cortexstore/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DefaultConfig().Storage
	cfg.Path = filepath.Join(t.TempDir(), "temporal.db")
	cfg.PoolSize = 2
	mgr, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return NewStore(mgr, config.DefaultConfig().Temporal)
}

func seedMemory(t *testing.T, s *Store, id string, at time.Time) {
	t.Helper()
	base := model.BaseMemory{
		ID:              id,
		MemoryType:      model.MemorySemantic,
		Content:         []byte(`{"note":"v0"}`),
		Summary:         "initial",
		TransactionTime: at,
		ValidTime:       at,
		Confidence:      0.5,
		Importance:      model.ImportanceMedium,
		Namespace:       "default",
		SourceAgent:     "test-agent",
		ContentHash:     "hash-0",
	}
	// memory_events.memory_id references memories(id), so the row has to
	// exist before its Created event; this insert appends no event itself.
	require.NoError(t, s.mgr.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO memories (id, memory_type, content, transaction_time, valid_time, confidence, importance, content_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, string(base.MemoryType), base.Content, at.Format(time.RFC3339Nano), at.Format(time.RFC3339Nano), base.Confidence, string(base.Importance), base.ContentHash)
		return err
	}))
	delta, err := json.Marshal(base)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), model.MemoryEvent{
		MemoryID:   id,
		RecordedAt: at,
		EventType:  model.EventCreated,
		Delta:      delta,
		Actor:      model.ActorUser,
	}))
}

func TestReplayAppliesEventsInOrder(t *testing.T) {
	shell := Shell("mem-1")
	created := model.BaseMemory{ID: "mem-1", MemoryType: model.MemorySemantic, Summary: "first", Confidence: 0.4}
	createdJSON, err := json.Marshal(created)
	require.NoError(t, err)

	tagsDelta, err := NewTagsModifiedDelta([]string{"a", "b"})
	require.NoError(t, err)
	confDelta, err := NewConfidenceChangedDelta(0.9)
	require.NoError(t, err)

	events := []model.MemoryEvent{
		{MemoryID: "mem-1", EventType: model.EventCreated, Delta: createdJSON, RecordedAt: time.Unix(1, 0)},
		{MemoryID: "mem-1", EventType: model.EventTagsModified, Delta: tagsDelta, RecordedAt: time.Unix(2, 0)},
		{MemoryID: "mem-1", EventType: model.EventConfidenceChanged, Delta: confDelta, RecordedAt: time.Unix(3, 0)},
	}

	got, err := Replay(events, shell)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Summary)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, 0.9, got.Confidence)
}

func TestReplayRejectsUnknownEventType(t *testing.T) {
	shell := Shell("mem-1")
	events := []model.MemoryEvent{
		{MemoryID: "mem-1", EventType: "NotARealEvent", Delta: []byte(`{}`), RecordedAt: time.Unix(1, 0)},
	}
	_, err := Replay(events, shell)
	assert.Error(t, err)
}

func TestReplayRejectsNewerSchemaVersion(t *testing.T) {
	shell := Shell("mem-1")
	events := []model.MemoryEvent{
		{MemoryID: "mem-1", EventType: model.EventArchived, Delta: []byte(`{}`), RecordedAt: time.Unix(1, 0), SchemaVersion: model.CurrentSchemaVersion + 1},
	}
	_, err := Replay(events, shell)
	assert.Error(t, err)
}

func TestLinkAddedAndRemovedAreIdempotent(t *testing.T) {
	shell := Shell("mem-1")
	add, err := NewLinkDelta("file", "main.go")
	require.NoError(t, err)
	remove, err := NewLinkDelta("file", "main.go")
	require.NoError(t, err)

	events := []model.MemoryEvent{
		{MemoryID: "mem-1", EventType: model.EventLinkAdded, Delta: add, RecordedAt: time.Unix(1, 0)},
		{MemoryID: "mem-1", EventType: model.EventLinkAdded, Delta: add, RecordedAt: time.Unix(2, 0)},
	}
	got, err := Replay(events, shell)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, got.LinkedFiles)

	events = append(events, model.MemoryEvent{MemoryID: "mem-1", EventType: model.EventLinkRemoved, Delta: remove, RecordedAt: time.Unix(3, 0)})
	got, err = Replay(events, shell)
	require.NoError(t, err)
	assert.Empty(t, got.LinkedFiles)
}

func TestReconstructAtMatchesFullReplay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)
	seedMemory(t, s, "mem-1", t0)

	tagsDelta, err := NewTagsModifiedDelta([]string{"x"})
	require.NoError(t, err)
	t1 := t0.Add(time.Minute)
	require.NoError(t, s.Append(ctx, model.MemoryEvent{
		MemoryID: "mem-1", EventType: model.EventTagsModified, Delta: tagsDelta, RecordedAt: t1, Actor: model.ActorAgent,
	}))

	confDelta, err := NewConfidenceChangedDelta(0.8)
	require.NoError(t, err)
	t2 := t1.Add(time.Minute)
	require.NoError(t, s.Append(ctx, model.MemoryEvent{
		MemoryID: "mem-1", EventType: model.EventConfidenceChanged, Delta: confDelta, RecordedAt: t2, Actor: model.ActorAgent,
	}))

	viaReconstruct, err := s.ReconstructAt(ctx, "mem-1", t2)
	require.NoError(t, err)

	var events []model.MemoryEvent
	require.NoError(t, s.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		events, err = query.ListEvents(ctx, db, "mem-1")
		return err
	}))
	viaFullReplay, err := Replay(events, Shell("mem-1"))
	require.NoError(t, err)

	assert.Equal(t, viaFullReplay.Tags, viaReconstruct.Tags)
	assert.Equal(t, viaFullReplay.Confidence, viaReconstruct.Confidence)

	// Before the tag change, reconstruction must not see it.
	before, err := s.ReconstructAt(ctx, "mem-1", t0)
	require.NoError(t, err)
	assert.Empty(t, before.Tags)
}

func TestAppendCreatesSnapshotAtThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)
	seedMemory(t, s, "mem-1", t0)

	for i := 0; i < s.snapshotEventThreshold; i++ {
		delta, err := NewConfidenceChangedDelta(float64(i) / 100)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, model.MemoryEvent{
			MemoryID: "mem-1", EventType: model.EventConfidenceChanged, Delta: delta,
			RecordedAt: t0.Add(time.Duration(i+1) * time.Second), Actor: model.ActorAgent,
		}))
	}

	var snap model.Snapshot
	var found bool
	require.NoError(t, s.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		snap, found, err = query.LatestSnapshotBefore(ctx, db, "mem-1", time.Now().UTC().Add(time.Hour))
		return err
	}))
	require.True(t, found)
	assert.Equal(t, model.SnapshotReasonEventThreshold, snap.Reason)
}

func TestTraverseCausalBoundsDepthAndRenders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC()
	seedMemory(t, s, "root", t0)
	seedMemory(t, s, "mid", t0)
	seedMemory(t, s, "leaf", t0)

	require.NoError(t, s.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		if err := query.InsertCausalEdge(ctx, db, query.CausalEdge{
			FromMemoryID: "root", Relation: query.RelationCaused, ToMemoryID: "mid", Strength: 0.9, Evidence: []string{"obs-1"},
		}); err != nil {
			return err
		}
		return query.InsertCausalEdge(ctx, db, query.CausalEdge{
			FromMemoryID: "mid", Relation: query.RelationDerivedFrom, ToMemoryID: "leaf", Strength: 0.7,
		})
	}))

	var trace CausalTrace
	require.NoError(t, s.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		trace, err = TraverseCausal(ctx, db, "root", 1)
		return err
	}))
	require.Len(t, trace.Hops, 1)
	assert.Equal(t, "mid", trace.Hops[0].To)

	require.NoError(t, s.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		trace, err = TraverseCausal(ctx, db, "root", 5)
		return err
	}))
	require.Len(t, trace.Hops, 2)

	narrative := RenderNarrative(trace)
	assert.Contains(t, narrative, "root")
	assert.Contains(t, narrative, "caused")
	assert.Contains(t, narrative, "obs-1")
}
