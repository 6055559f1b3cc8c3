// Package views implements the Materialized View Engine (§4.8): named,
// timestamp-bound snapshots of the whole knowledge base, diffing between two
// views, and an auto-refresh scheduler deciding when a new one is due.
package views

import (
	"context"
	"database/sql"
	"time"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
	"cortexstore/internal/query"
	"cortexstore/internal/storage"
	"cortexstore/internal/temporal"

	"github.com/google/uuid"
)

// Engine wraps a storage.Manager and a temporal.Store with the materialized
// view operations.
type Engine struct {
	mgr   *storage.Manager
	store *temporal.Store
}

// NewEngine builds an Engine over mgr/store.
func NewEngine(mgr *storage.Manager, store *temporal.Store) *Engine {
	return &Engine{mgr: mgr, store: store}
}

// CreateMaterializedView reconstructs every memory that existed at
// timestamp, snapshots each one, and binds label to those snapshots. Labels
// are unique; re-creation under an existing label is rejected rather than
// silently overwritten (§4.8).
func (e *Engine) CreateMaterializedView(ctx context.Context, label string, timestamp time.Time, createdBy string) (model.MaterializedTemporalView, error) {
	return e.createView(ctx, label, timestamp, createdBy, false)
}

func (e *Engine) createView(ctx context.Context, label string, timestamp time.Time, createdBy string, autoRefresh bool) (model.MaterializedTemporalView, error) {
	const op = "views.CreateMaterializedView"

	if _, err := e.GetView(ctx, label); err == nil {
		return model.MaterializedTemporalView{}, errs.DuplicateLabel(op, label)
	} else if !errs.Of(err, errs.KindNotFound) {
		return model.MaterializedTemporalView{}, err
	}

	var ids []string
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		ids, err = query.ListMemoryIDsAsOf(ctx, db, timestamp)
		return err
	})
	if err != nil {
		return model.MaterializedTemporalView{}, err
	}

	for _, id := range ids {
		if err := e.store.CreateSnapshotAt(ctx, id, timestamp, model.SnapshotReasonManual); err != nil {
			return model.MaterializedTemporalView{}, err
		}
	}

	v := model.MaterializedTemporalView{
		ViewID:      uuid.NewString(),
		Label:       label,
		Timestamp:   timestamp,
		MemoryCount: len(ids),
		SnapshotIDs: ids,
		CreatedBy:   createdBy,
		AutoRefresh: autoRefresh,
	}

	err = e.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errs.Wrap(errs.KindSqliteError, op, err)
		}
		if err := query.CreateView(ctx, tx, v); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return model.MaterializedTemporalView{}, err
	}
	return v, nil
}

// GetView loads a view by label.
func (e *Engine) GetView(ctx context.Context, label string) (model.MaterializedTemporalView, error) {
	var v model.MaterializedTemporalView
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		v, err = query.GetView(ctx, db, label)
		return err
	})
	return v, err
}

// ListViews returns every view's metadata, most recent first.
func (e *Engine) ListViews(ctx context.Context) ([]model.MaterializedTemporalView, error) {
	var out []model.MaterializedTemporalView
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		out, err = query.ListViews(ctx, db)
		return err
	})
	return out, err
}

// DeleteView removes a view by id; its bound snapshot memberships cascade.
func (e *Engine) DeleteView(ctx context.Context, viewID string) error {
	return e.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errs.Wrap(errs.KindSqliteError, "views.DeleteView", err)
		}
		if err := query.DeleteView(ctx, tx, viewID); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
