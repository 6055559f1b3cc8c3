package batch

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cortexstore/internal/config"
	"cortexstore/internal/errs"
	"cortexstore/internal/logging"
	"cortexstore/internal/metrics"
	"cortexstore/internal/storage"
)

// Stats reports rows flushed per command variant plus flush counts, mirroring
// §6's "Stats names one counter per table plus flushes."
type Stats struct {
	RowsByVariant map[string]int64
	Flushes       int64
	FlushFailures int64
}

func newStats() Stats {
	return Stats{RowsByVariant: make(map[string]int64)}
}

func (s *Stats) clone() Stats {
	out := Stats{RowsByVariant: make(map[string]int64, len(s.RowsByVariant)), Flushes: s.Flushes, FlushFailures: s.FlushFailures}
	for k, v := range s.RowsByVariant {
		out.RowsByVariant[k] = v
	}
	return out
}

// flushAck is sent back on an explicit flush request so the caller can
// observe whether it succeeded.
type flushAck struct {
	done chan error
}

// BatchWriter serializes writes from many producers onto cortexstore's sole
// write connection, coalescing them into size- or time-triggered
// transactions (§4.3).
type BatchWriter struct {
	mgr *storage.Manager
	cfg config.BatchConfig

	cmds     chan BatchCommand
	flushReq chan flushAck
	shutdown chan chan Stats
	closed   chan struct{}

	group   *errgroup.Group
	groupCtx context.Context

	statsMu sync.Mutex
	stats   Stats
}

// New constructs a BatchWriter and starts its consumer goroutine under an
// errgroup, so a consumer panic surfaces through Shutdown/Wait instead of
// being silently lost.
func New(ctx context.Context, mgr *storage.Manager, cfg config.BatchConfig) *BatchWriter {
	capacity := cfg.ChannelCapacity
	if capacity <= 0 {
		capacity = 1024
	}

	g, gctx := errgroup.WithContext(ctx)
	w := &BatchWriter{
		mgr:      mgr,
		cfg:      cfg,
		cmds:     make(chan BatchCommand, capacity),
		flushReq: make(chan flushAck),
		shutdown: make(chan chan Stats),
		closed:   make(chan struct{}),
		group:    g,
		groupCtx: gctx,
		stats:    newStats(),
	}

	g.Go(func() error {
		return w.consume(gctx)
	})

	return w
}

// Send enqueues cmd, blocking if the channel is at capacity (backpressure;
// §5 "blocks the sender"). Returns ctx.Err() if ctx is cancelled first, or
// errs.KindChannelClosed if the writer has already started shutting down.
func (w *BatchWriter) Send(ctx context.Context, cmd BatchCommand) error {
	const op = "batch.Send"
	select {
	case <-w.closed:
		return errs.New(errs.KindChannelClosed, op)
	default:
	}
	select {
	case w.cmds <- cmd:
		return nil
	case <-w.closed:
		return errs.New(errs.KindChannelClosed, op)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush requests an immediate flush of everything currently buffered and
// waits for it to complete.
func (w *BatchWriter) Flush(ctx context.Context) error {
	ack := flushAck{done: make(chan error, 1)}
	select {
	case w.flushReq <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown marks the writer closed (later Sends fail with
// errs.KindChannelClosed), drains pending commands, performs a final flush,
// and returns aggregate stats.
func (w *BatchWriter) Shutdown(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case w.shutdown <- reply:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}

	select {
	case s := <-reply:
		if err := w.group.Wait(); err != nil {
			return s, errs.Wrap(errs.KindShutdownFailed, "batch.Shutdown", err)
		}
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Snapshot returns a copy of the current stats without stopping the writer.
func (w *BatchWriter) Snapshot() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats.clone()
}

func (w *BatchWriter) consume(ctx context.Context) error {
	logger := logging.Get(logging.CategoryBatch)

	flushInterval := w.cfg.FlushInterval
	if flushInterval == "" {
		flushInterval = "100ms"
	}
	interval, err := time.ParseDuration(flushInterval)
	if err != nil {
		interval = 100 * time.Millisecond
	}
	rowThreshold := w.cfg.FlushRowThreshold
	if rowThreshold <= 0 {
		rowThreshold = 500
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []BatchCommand
	pendingRows := 0

	doFlush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := w.flushTransaction(ctx, pending)
		w.statsMu.Lock()
		w.stats.Flushes++
		if err != nil {
			w.stats.FlushFailures++
		} else {
			for _, c := range pending {
				w.stats.RowsByVariant[c.Variant()] += int64(c.RowCount())
			}
		}
		w.statsMu.Unlock()

		metrics.BatchFlushesTotal.Inc()
		if err != nil {
			metrics.BatchFlushFailures.Inc()
			logger.Warn("batch flush failed, buffer retained for retry")
			return err
		}
		for _, c := range pending {
			metrics.BatchRowsByVariant.WithLabelValues(c.Variant()).Add(float64(c.RowCount()))
		}
		// Only clear the buffer on a successful commit (§4.3).
		pending = nil
		pendingRows = 0
		return nil
	}

	for {
		select {
		case cmd, ok := <-w.cmds:
			if !ok {
				return nil
			}
			pending = append(pending, cmd)
			pendingRows += cmd.RowCount()
			if pendingRows >= rowThreshold {
				_ = doFlush()
			}

		case <-ticker.C:
			_ = doFlush()

		case ack := <-w.flushReq:
			ack.done <- doFlush()

		case reply := <-w.shutdown:
			close(w.closed)
			w.drainRemaining(&pending, &pendingRows)
			_ = doFlush()
			reply <- w.Snapshot()
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainRemaining non-blockingly consumes whatever is already queued in the
// command channel so shutdown's final flush includes it.
func (w *BatchWriter) drainRemaining(pending *[]BatchCommand, pendingRows *int) {
	for {
		select {
		case cmd, ok := <-w.cmds:
			if !ok {
				return
			}
			*pending = append(*pending, cmd)
			*pendingRows += cmd.RowCount()
		default:
			return
		}
	}
}

// flushTransaction wraps every pending command in one transaction on the
// sole write connection; any failure rolls back the entire flush.
func (w *BatchWriter) flushTransaction(ctx context.Context, pending []BatchCommand) error {
	return w.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errs.Wrap(errs.KindSqliteError, "batch.flush", err)
		}

		for _, cmd := range pending {
			if err := cmd.apply(ctx, tx); err != nil {
				_ = tx.Rollback()
				return errs.Wrap(errs.KindSqliteError, "batch.flush", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return errs.Wrap(errs.KindSqliteError, "batch.flush", err)
		}
		return nil
	})
}
