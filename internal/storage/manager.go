// Package storage implements the Database Manager (§4.1): single-writer,
// pooled-reader SQLite access with pragma discipline, poison recovery, and
// checkpoint control. Grounded on the teacher's internal/store/local_core.go
// pragma sequence, generalized from a single max-open-conns(1) *sql.DB into
// an explicit writer/reader-pool split resolved against the original
// source's WriteConnection/ReadPool test harness.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cortexstore/internal/config"
	"cortexstore/internal/errs"
	"cortexstore/internal/logging"
	"cortexstore/internal/metrics"
	"cortexstore/internal/storage/migrations"
)

// Manager owns one SQLite database: a single serialized writer connection
// and a fixed-size round-robin pool of read-only reader connections.
type Manager struct {
	cfg  config.StorageConfig
	path string // empty for in-memory

	writerDB   *sql.DB
	writerLock *poisonableLock

	readers     []*sql.DB
	readerLocks []*poisonableLock
	nextReader  uint64 // accessed only via atomic.AddUint64 in nextReaderIndex
}

// Open creates (or opens) the database at cfg.Path, applies pragmas before
// running migrations (so auto_vacuum takes effect on an empty file), then
// runs migrations once. An empty cfg.Path opens an in-memory database: per
// §4.1's "in-memory caveat", the writer and each reader then live in
// separate, unconnected in-memory databases — this is a deliberate
// behavioral difference from the file-backed case and must be documented to
// callers, not silently "fixed".
func Open(ctx context.Context, cfg config.StorageConfig) (*Manager, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "storage.Open")
	defer timer.Stop()

	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, "storage.Open", err)
		}
	}

	writerDB, err := openConnection(cfg.Path, false)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, "storage.Open", err)
	}
	writerDB.SetMaxOpenConns(1)
	writerDB.SetMaxIdleConns(1)

	if err := applyWriterPragmas(ctx, writerDB, cfg); err != nil {
		writerDB.Close()
		return nil, errs.Wrap(errs.KindSqliteError, "storage.Open", err)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	readers := make([]*sql.DB, poolSize)
	readerLocks := make([]*poisonableLock, poolSize)
	for i := 0; i < poolSize; i++ {
		rdb, err := openConnection(cfg.Path, true)
		if err != nil {
			writerDB.Close()
			for j := 0; j < i; j++ {
				readers[j].Close()
			}
			return nil, errs.Wrap(errs.KindSqliteError, "storage.Open", err)
		}
		rdb.SetMaxOpenConns(1)
		rdb.SetMaxIdleConns(1)
		if err := applyReaderPragmas(ctx, rdb, cfg); err != nil {
			writerDB.Close()
			for j := 0; j <= i; j++ {
				readers[j].Close()
			}
			return nil, errs.Wrap(errs.KindSqliteError, "storage.Open", err)
		}
		readers[i] = rdb
		readerLocks[i] = newPoisonableLock(fmt.Sprintf("reader-%d", i))
	}

	m := &Manager{
		cfg:         cfg,
		path:        cfg.Path,
		writerDB:    writerDB,
		writerLock:  newPoisonableLock("writer"),
		readers:     readers,
		readerLocks: readerLocks,
	}

	runner := migrations.NewRunner(writerDB)
	if err := runner.Run(ctx); err != nil {
		m.Close()
		return nil, errs.Wrap(errs.KindMigrationFailed, "storage.Open", err)
	}

	return m, nil
}

// openConnection opens one sqlite3 *sql.DB handle. readOnly opens a
// file-backed DB with mode=ro. An empty path opens a private in-memory database
// (file::memory:?cache=private), so the writer and every reader each get
// their own isolated in-memory database per §4.1.
func openConnection(path string, readOnly bool) (*sql.DB, error) {
	dsn := "file::memory:?cache=private"
	if path != "" {
		if readOnly {
			dsn = fmt.Sprintf("file:%s?mode=ro", path)
		} else {
			dsn = fmt.Sprintf("file:%s?mode=rwc", path)
		}
	}
	return sql.Open("sqlite3", dsn)
}

func applyWriterPragmas(ctx context.Context, db *sql.DB, cfg config.StorageConfig) error {
	cacheSizeKB := cfg.CacheSizeKB
	if cacheSizeKB <= 0 {
		cacheSizeKB = 64000
	}
	mmapSize := cfg.MmapSizeBytes
	if mmapSize <= 0 {
		mmapSize = 268435456
	}
	busyMs := int64(cfg.BusyTimeoutOrDefault().Milliseconds())

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSizeKB),
		fmt.Sprintf("PRAGMA mmap_size=%d", mmapSize),
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyMs),
		"PRAGMA temp_store=MEMORY",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

// applyReaderPragmas applies the same cache/busy-timeout pragmas as the
// writer, per §4.1: "same cache and busy-timeout; reads of cache_size,
// busy_timeout, etc., must reflect these values." journal_mode=WAL is stored
// in the database file, so readers see it without setting it; foreign_keys
// is per-connection and is not enabled on readers. busy_timeout and
// cache_size are per-connection too, so they are set explicitly.
func applyReaderPragmas(ctx context.Context, db *sql.DB, cfg config.StorageConfig) error {
	cacheSizeKB := cfg.CacheSizeKB
	if cacheSizeKB <= 0 {
		cacheSizeKB = 64000
	}
	busyMs := int64(cfg.BusyTimeoutOrDefault().Milliseconds())

	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSizeKB),
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyMs),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply reader pragma %q: %w", p, err)
		}
	}
	return nil
}

// WithWriter runs fn under the exclusive writer lock, against the sole
// write connection. If the writer lock was poisoned by a previous panicking
// caller, fn never runs.
func (m *Manager) WithWriter(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	timer := logging.StartTimer(logging.CategoryStorage, "storage.WithWriter")
	defer timer.Stop()

	err := m.writerLock.withLock("storage.WithWriter", func() error {
		return fn(ctx, m.writerDB)
	})
	if err != nil {
		metrics.StorageWriterErrors.Inc()
	}
	return err
}

// WithReader runs fn against one connection drawn round-robin from the
// reader pool. The chosen slot is exclusive for fn's duration; poisoning
// affects only that slot.
func (m *Manager) WithReader(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	timer := logging.StartTimer(logging.CategoryStorage, "storage.WithReader")
	defer timer.Stop()

	idx := m.nextReaderIndex()
	lock := m.readerLocks[idx]
	db := m.readers[idx]

	metrics.StorageReaderInUse.Inc()
	defer metrics.StorageReaderInUse.Dec()

	op := fmt.Sprintf("storage.WithReader[%d]", idx)
	return lock.withLock(op, func() error {
		return fn(ctx, db)
	})
}

func (m *Manager) nextReaderIndex() int {
	n := uint64(len(m.readers))
	return int(atomic.AddUint64(&m.nextReader, 1) % n)
}

// Checkpoint runs PRAGMA wal_checkpoint(TRUNCATE) on the writer connection
// so the -wal sidecar shrinks to zero bytes after draining.
func (m *Manager) Checkpoint(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryStorage, "storage.Checkpoint")
	defer timer.Stop()

	start := time.Now()
	err := m.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
		if err != nil {
			return errs.Wrap(errs.KindSqliteError, "storage.Checkpoint", err)
		}
		return nil
	})
	metrics.StorageCheckpointDuration.Observe(time.Since(start).Seconds())
	return err
}

// Path returns the database file path, or "" for an in-memory database.
func (m *Manager) Path() string {
	return m.path
}

// Stats summarizes pool health for operators.
type Stats struct {
	PoolSize          int
	PoisonedReaders   int
	WriterPoisoned    bool
}

// Stats reports current pool/writer health.
func (m *Manager) Stats() Stats {
	s := Stats{PoolSize: len(m.readers), WriterPoisoned: m.writerLock.isPoisoned()}
	for _, l := range m.readerLocks {
		if l.isPoisoned() {
			s.PoisonedReaders++
		}
	}
	return s
}

// Close closes the writer and all reader connections.
func (m *Manager) Close() error {
	var firstErr error
	if err := m.writerDB.Close(); err != nil {
		firstErr = err
	}
	for _, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
