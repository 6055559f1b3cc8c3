package query

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortexstore/internal/config"
	"cortexstore/internal/model"
	"cortexstore/internal/storage"
)

func newTestManager(t *testing.T) *storage.Manager {
	t.Helper()
	cfg := config.DefaultConfig().Storage
	cfg.Path = filepath.Join(t.TempDir(), "query.db")
	cfg.PoolSize = 2
	mgr, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func sampleMemory(id string) model.BaseMemory {
	now := time.Now().UTC().Truncate(time.Second)
	return model.BaseMemory{
		ID:              id,
		MemoryType:      model.MemorySemantic,
		Content:         []byte(`{"note":"hello"}`),
		Summary:         "a memory about hello",
		TransactionTime: now,
		ValidTime:       now,
		Confidence:      0.5,
		Importance:      model.ImportanceMedium,
		LastAccessed:    now,
		Tags:            []string{"alpha", "beta"},
		LinkedPatterns:  []string{"pattern-1"},
		LinkedFiles:     []string{"main.go"},
		Namespace:       "default",
		SourceAgent:     "test-agent",
		ContentHash:     "hash-" + id,
	}
}

func TestInsertAndGetMemoryRoundTrips(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	m := sampleMemory("mem-1")

	err := mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		if err := InsertMemory(ctx, tx, m); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	require.NoError(t, err)

	var got model.BaseMemory
	err = mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		got, err = GetMemory(ctx, db, "mem-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Summary, got.Summary)
	assert.ElementsMatch(t, m.Tags, got.Tags)
	assert.ElementsMatch(t, m.LinkedPatterns, got.LinkedPatterns)
	assert.ElementsMatch(t, m.LinkedFiles, got.LinkedFiles)

	var events []model.MemoryEvent
	err = mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		events, err = ListEvents(ctx, db, "mem-1")
		return err
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCreated, events[0].EventType)
}

func TestGetMemoryNotFound(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	err := mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := GetMemory(ctx, db, "does-not-exist")
		return err
	})
	require.Error(t, err)
}

func TestUpdateMemoryResyncsLinks(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	m := sampleMemory("mem-2")

	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, _ := db.BeginTx(ctx, nil)
		if err := InsertMemory(ctx, tx, m); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}))

	m.LinkedFiles = []string{"other.go"}
	m.Summary = "updated summary"
	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, _ := db.BeginTx(ctx, nil)
		if err := UpdateMemory(ctx, tx, m, model.EventContentUpdated, model.ActorUser, []byte(`{}`)); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}))

	var got model.BaseMemory
	require.NoError(t, mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		got, err = GetMemory(ctx, db, "mem-2")
		return err
	}))
	assert.Equal(t, []string{"other.go"}, got.LinkedFiles)
	assert.Equal(t, "updated summary", got.Summary)
}

func TestDeleteMemoryCascadesLinksAndEvents(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	m := sampleMemory("mem-3")

	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, _ := db.BeginTx(ctx, nil)
		if err := InsertMemory(ctx, tx, m); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}))

	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, _ := db.BeginTx(ctx, nil)
		if err := DeleteMemory(ctx, tx, "mem-3"); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}))

	err := mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := GetMemory(ctx, db, "mem-3")
		return err
	})
	assert.Error(t, err)
}

func TestVectorSearchRanksByCosineSimilarity(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	for _, m := range []model.BaseMemory{sampleMemory("v1"), sampleMemory("v2"), sampleMemory("v3")} {
		require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
			tx, _ := db.BeginTx(ctx, nil)
			if err := InsertMemory(ctx, tx, m); err != nil {
				tx.Rollback()
				return err
			}
			return tx.Commit()
		}))
	}

	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		require.NoError(t, UpsertMemoryEmbedding(ctx, db, "v1", "test-model", []float32{1, 0, 0}))
		require.NoError(t, UpsertMemoryEmbedding(ctx, db, "v2", "test-model", []float32{0, 1, 0}))
		require.NoError(t, UpsertMemoryEmbedding(ctx, db, "v3", "test-model", []float32{0.9, 0.1, 0}))
		return nil
	}))

	var matches []VectorMatch
	require.NoError(t, mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		matches, err = VectorSearch(ctx, db, []float32{1, 0, 0}, 2)
		return err
	}))
	require.Len(t, matches, 2)
	assert.Equal(t, "v1", matches[0].MemoryID)
	assert.Equal(t, "v3", matches[1].MemoryID)
}

func TestFTS5SearchMatchesSummary(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	m := sampleMemory("fts-1")
	m.Summary = "a note about database migrations"

	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, _ := db.BeginTx(ctx, nil)
		if err := InsertMemory(ctx, tx, m); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}))

	var matches []FTSMatch
	require.NoError(t, mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		matches, err = FTS5Search(ctx, db, "migrations", 10)
		return err
	}))
	require.Len(t, matches, 1)
	assert.Equal(t, "fts-1", matches[0].MemoryID)
}

func TestViewCreateAndGet(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	m := sampleMemory("view-mem-1")

	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, _ := db.BeginTx(ctx, nil)
		if err := InsertMemory(ctx, tx, m); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}))

	v := model.MaterializedTemporalView{
		ViewID:      "view-1",
		Label:       "release-cut",
		Timestamp:   time.Now().UTC(),
		MemoryCount: 1,
		SnapshotIDs: []string{"view-mem-1"},
		CreatedBy:   "test",
	}
	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, _ := db.BeginTx(ctx, nil)
		if err := CreateView(ctx, tx, v); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}))

	var got model.MaterializedTemporalView
	require.NoError(t, mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		got, err = GetView(ctx, db, "release-cut")
		return err
	}))
	assert.Equal(t, "view-1", got.ViewID)
	assert.Equal(t, []string{"view-mem-1"}, got.SnapshotIDs)
}

func TestPatternConfidenceUpsertAndGet(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	c := model.PatternConfidence{
		PatternID: "pattern-1", Alpha: 3, Beta: 1, PosteriorMean: 0.75,
		CILow: 0.4, CIHigh: 0.95, Tier: model.TierEmerging, Momentum: model.MomentumRising,
	}
	require.NoError(t, mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		return UpsertPatternConfidence(ctx, db, c)
	}))

	var got model.PatternConfidence
	require.NoError(t, mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		got, err = GetPatternConfidence(ctx, db, "pattern-1")
		return err
	}))
	assert.Equal(t, c.Alpha, got.Alpha)
	assert.Equal(t, model.TierEmerging, got.Tier)
}

func TestPatternStatusDefaultsToDiscovered(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	var got model.PatternStatus
	require.NoError(t, mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		got, err = GetPatternStatus(ctx, db, "unknown-pattern")
		return err
	}))
	assert.Equal(t, model.PatternDiscovered, got.Status)
}
