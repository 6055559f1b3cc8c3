package batch

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortexstore/internal/config"
	"cortexstore/internal/model"
	"cortexstore/internal/storage"
)

func newTestWriter(t *testing.T, batchCfg config.BatchConfig) (*BatchWriter, *storage.Manager) {
	t.Helper()
	storageCfg := config.DefaultConfig().Storage
	storageCfg.Path = filepath.Join(t.TempDir(), "batch.db")
	storageCfg.PoolSize = 2

	mgr, err := storage.Open(context.Background(), storageCfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	w := New(context.Background(), mgr, batchCfg)
	return w, mgr
}

func fileRow(path string) model.FileMetadata {
	return model.FileMetadata{
		Path: path, Size: 10, ContentHash: "h-" + path,
		LastScannedAt: time.Now(),
	}
}

func TestSizeTriggeredFlush(t *testing.T) {
	cfg := config.DefaultConfig().Batch
	cfg.FlushRowThreshold = 5
	cfg.FlushInterval = "1h" // disable time trigger for this test
	w, mgr := newTestWriter(t, cfg)

	rows := make([]model.FileMetadata, 5)
	for i := range rows {
		rows[i] = fileRow(fmt.Sprintf("f%d.go", i))
	}
	require.NoError(t, w.Send(context.Background(), UpsertFileMetadata(rows)))

	require.Eventually(t, func() bool {
		return w.Snapshot().Flushes >= 1
	}, 2*time.Second, 10*time.Millisecond)

	var count int
	err := mgr.WithReader(context.Background(), func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_metadata").Scan(&count)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestTimeTriggeredFlush(t *testing.T) {
	cfg := config.DefaultConfig().Batch
	cfg.FlushRowThreshold = 500
	cfg.FlushInterval = "20ms"
	w, mgr := newTestWriter(t, cfg)

	rows := []model.FileMetadata{fileRow("only.go")}
	require.NoError(t, w.Send(context.Background(), UpsertFileMetadata(rows)))

	require.Eventually(t, func() bool {
		return w.Snapshot().Flushes >= 1
	}, 2*time.Second, 5*time.Millisecond)

	var count int
	err := mgr.WithReader(context.Background(), func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_metadata").Scan(&count)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFlushAtomicityRollsBackWholeBatch(t *testing.T) {
	cfg := config.DefaultConfig().Batch
	cfg.FlushRowThreshold = 500
	cfg.FlushInterval = "1h"
	w, mgr := newTestWriter(t, cfg)

	require.NoError(t, w.Send(context.Background(), UpsertFileMetadata([]model.FileMetadata{fileRow("valid.go")})))
	// References nonexistent functions: violates the foreign_keys=ON pragma.
	require.NoError(t, w.Send(context.Background(), InsertCallEdges([]model.CallEdge{
		{CallerID: "missing-caller", CalleeID: "missing-callee", Resolution: model.ResolutionSameFile, Confidence: 1, CallSiteLine: 1},
	})))

	err := w.Flush(context.Background())
	assert.Error(t, err)

	var count int
	readErr := mgr.WithReader(context.Background(), func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_metadata").Scan(&count)
	})
	require.NoError(t, readErr)
	assert.Equal(t, 0, count, "valid row must not survive a flush that rolled back")
}

func TestShutdownDrainsAndFlushes(t *testing.T) {
	cfg := config.DefaultConfig().Batch
	cfg.FlushRowThreshold = 500
	cfg.FlushInterval = "1h"
	w, mgr := newTestWriter(t, cfg)

	for i := 0; i < 499; i++ {
		require.NoError(t, w.Send(context.Background(), UpsertFileMetadata([]model.FileMetadata{fileRow(fmt.Sprintf("f%d.go", i))})))
	}

	stats, err := w.Shutdown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(499), stats.RowsByVariant["UpsertFileMetadata"])
	assert.GreaterOrEqual(t, stats.Flushes, int64(1))

	var count int
	readErr := mgr.WithReader(context.Background(), func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_metadata").Scan(&count)
	})
	require.NoError(t, readErr)
	assert.Equal(t, 499, count)
}
