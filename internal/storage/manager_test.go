package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortexstore/internal/config"
)

func testStorageConfig(path string) config.StorageConfig {
	cfg := config.DefaultConfig().Storage
	cfg.Path = path
	cfg.PoolSize = 2
	return cfg
}

func TestOpenFileBackedWriteReadVisibility(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "storage.db")
	m, err := Open(context.Background(), testStorageConfig(dbPath))
	require.NoError(t, err)
	defer m.Close()

	err = m.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `INSERT INTO file_metadata
			(path, size, content_hash, mtime_secs, mtime_nanos, last_scanned_at)
			VALUES (?, ?, ?, ?, ?, ?)`, "a.go", 100, "hash1", 0, 0, "2024-01-01T00:00:00Z")
		return err
	})
	require.NoError(t, err)

	var count int
	err = m.WithReader(context.Background(), func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_metadata").Scan(&count)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInMemoryReaderDoesNotSeeWriterData(t *testing.T) {
	m, err := Open(context.Background(), testStorageConfig(""))
	require.NoError(t, err)
	defer m.Close()

	err = m.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `INSERT INTO file_metadata
			(path, size, content_hash, mtime_secs, mtime_nanos, last_scanned_at)
			VALUES (?, ?, ?, ?, ?, ?)`, "a.go", 100, "hash1", 0, 0, "2024-01-01T00:00:00Z")
		return err
	})
	require.NoError(t, err)

	err = m.WithReader(context.Background(), func(ctx context.Context, db *sql.DB) error {
		var count int
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_metadata").Scan(&count)
	})
	assert.Error(t, err, "in-memory readers must not see the writer's separate in-memory database")
}

func TestCheckpointTruncatesWAL(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "storage.db")
	m, err := Open(context.Background(), testStorageConfig(dbPath))
	require.NoError(t, err)
	defer m.Close()

	err = m.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		for i := 0; i < 5000; i++ {
			if _, err := db.ExecContext(ctx, `INSERT INTO file_metadata
				(path, size, content_hash, mtime_secs, mtime_nanos, last_scanned_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				fmt.Sprintf("file_%d.go", i), 100, fmt.Sprintf("hash_%d", i), 0, 0, "2024-01-01T00:00:00Z"); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	walPath := dbPath + "-wal"
	info, err := os.Stat(walPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.NoError(t, m.Checkpoint(context.Background()))

	info, err = os.Stat(walPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestWriterLockPoisonsOnPanic(t *testing.T) {
	m, err := Open(context.Background(), testStorageConfig(""))
	require.NoError(t, err)
	defer m.Close()

	err = m.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		panic("boom")
	})
	require.Error(t, err)

	err = m.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		return nil
	})
	require.Error(t, err, "writer lock must remain poisoned after a panicking holder")

	stats := m.Stats()
	assert.True(t, stats.WriterPoisoned)
}

func TestReaderPoisoningIsPerSlotOnly(t *testing.T) {
	cfg := testStorageConfig("")
	cfg.PoolSize = 2
	m, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer m.Close()

	// Poison slot 0 by panicking inside its lock directly.
	m.readerLocks[0].withLock("test", func() error {
		panic("boom")
	})

	stats := m.Stats()
	assert.Equal(t, 1, stats.PoisonedReaders)

	// Slot 1 remains usable.
	err = m.readerLocks[1].withLock("test", func() error { return nil })
	assert.NoError(t, err)
}
