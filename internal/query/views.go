package query

import (
	"context"
	"database/sql"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// CreateView inserts a materialized view row plus its member snapshot ids,
// atomically.
func CreateView(ctx context.Context, tx *sql.Tx, v model.MaterializedTemporalView) error {
	const op = "query.CreateView"
	_, err := tx.ExecContext(ctx, `
		INSERT INTO materialized_temporal_views (view_id, label, timestamp, memory_count, drift_snapshot_id, created_by, auto_refresh)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ViewID, v.Label, timeToStr(v.Timestamp), v.MemoryCount, nullString(v.DriftSnapshotID), v.CreatedBy, boolInt(v.AutoRefresh))
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}

	for _, memID := range v.SnapshotIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO materialized_view_snapshots (view_id, memory_id, as_of) VALUES (?, ?, ?)
		`, v.ViewID, memID, timeToStr(v.Timestamp)); err != nil {
			return errs.Wrap(errs.KindSqliteError, op, err)
		}
	}
	return nil
}

// GetView loads a view by label, including its member snapshot ids.
func GetView(ctx context.Context, q querier, label string) (model.MaterializedTemporalView, error) {
	const op = "query.GetView"
	row := q.QueryRowContext(ctx, `
		SELECT view_id, label, timestamp, memory_count, drift_snapshot_id, created_by, auto_refresh
		FROM materialized_temporal_views WHERE label = ?
	`, label)

	var (
		v               model.MaterializedTemporalView
		ts              string
		driftSnapshotID sql.NullString
		autoRefresh     int
	)
	err := row.Scan(&v.ViewID, &v.Label, &ts, &v.MemoryCount, &driftSnapshotID, &v.CreatedBy, &autoRefresh)
	if err == sql.ErrNoRows {
		return model.MaterializedTemporalView{}, errs.New(errs.KindNotFound, op)
	}
	if err != nil {
		return model.MaterializedTemporalView{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	v.DriftSnapshotID = driftSnapshotID.String
	v.AutoRefresh = autoRefresh != 0
	if v.Timestamp, err = strToTime(op, "timestamp", ts); err != nil {
		return model.MaterializedTemporalView{}, err
	}

	ids, err := loadViewSnapshotIDs(ctx, q, v.ViewID)
	if err != nil {
		return model.MaterializedTemporalView{}, err
	}
	v.SnapshotIDs = ids
	return v, nil
}

func loadViewSnapshotIDs(ctx context.Context, q querier, viewID string) ([]string, error) {
	const op = "query.loadViewSnapshotIDs"
	rows, err := q.QueryContext(ctx, `SELECT memory_id FROM materialized_view_snapshots WHERE view_id = ?`, viewID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}

// ListViews returns every view's metadata (without snapshot ids, to keep the
// listing cheap).
func ListViews(ctx context.Context, q querier) ([]model.MaterializedTemporalView, error) {
	const op = "query.ListViews"
	rows, err := q.QueryContext(ctx, `
		SELECT view_id, label, timestamp, memory_count, drift_snapshot_id, created_by, auto_refresh
		FROM materialized_temporal_views ORDER BY timestamp DESC
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []model.MaterializedTemporalView
	for rows.Next() {
		var (
			v               model.MaterializedTemporalView
			ts              string
			driftSnapshotID sql.NullString
			autoRefresh     int
		)
		if err := rows.Scan(&v.ViewID, &v.Label, &ts, &v.MemoryCount, &driftSnapshotID, &v.CreatedBy, &autoRefresh); err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		v.DriftSnapshotID = driftSnapshotID.String
		v.AutoRefresh = autoRefresh != 0
		if v.Timestamp, err = strToTime(op, "timestamp", ts); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}

// DeleteView removes a view; materialized_view_snapshots rows cascade via FK.
func DeleteView(ctx context.Context, tx *sql.Tx, viewID string) error {
	const op = "query.DeleteView"
	res, err := tx.ExecContext(ctx, `DELETE FROM materialized_temporal_views WHERE view_id = ?`, viewID)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.KindNotFound, op)
	}
	return nil
}
