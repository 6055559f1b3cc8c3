package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// appendEventTx inserts one memory_events row under an existing transaction,
// the shape every CRUD mutation in this package uses to keep the event log
// and the row it describes atomic with each other.
func appendEventTx(ctx context.Context, tx *sql.Tx, e model.MemoryEvent) error {
	const op = "query.appendEvent"
	causedBy, err := marshalJSON(op, "caused_by", e.CausedBy)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_events (memory_id, recorded_at, event_type, delta, actor, caused_by, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.MemoryID, timeToStr(e.RecordedAt), string(e.EventType), e.Delta, string(e.Actor), causedBy, e.SchemaVersion)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

// AppendEvent appends a standalone event outside of a CRUD mutation's
// transaction (used by temporal.Store for events that don't accompany a row
// write, e.g. a superseding link recorded after the fact).
func AppendEvent(ctx context.Context, db *sql.DB, e model.MemoryEvent) error {
	const op = "query.AppendEvent"
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if err := appendEventTx(ctx, tx, e); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

func rowToEvent(op string, row scanner) (model.MemoryEvent, error) {
	var (
		e             model.MemoryEvent
		recordedAt    string
		eventType     string
		actor         string
		causedByJSON  sql.NullString
	)
	if err := row.Scan(&e.EventID, &e.MemoryID, &recordedAt, &eventType, &e.Delta, &actor, &causedByJSON, &e.SchemaVersion); err != nil {
		return model.MemoryEvent{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	e.EventType = model.MemoryEventType(eventType)
	e.Actor = model.EventActor(actor)

	rt, err := strToTime(op, "recorded_at", recordedAt)
	if err != nil {
		return model.MemoryEvent{}, err
	}
	e.RecordedAt = rt

	if causedByJSON.Valid && causedByJSON.String != "" && causedByJSON.String != "null" {
		if err := json.Unmarshal([]byte(causedByJSON.String), &e.CausedBy); err != nil {
			return model.MemoryEvent{}, errs.Deserialization(op, "caused_by", err.Error())
		}
	}
	return e, nil
}

// ListEvents returns every event for memoryID in recorded_at order, the
// input to replay().
func ListEvents(ctx context.Context, q querier, memoryID string) ([]model.MemoryEvent, error) {
	const op = "query.ListEvents"
	rows, err := q.QueryContext(ctx, `
		SELECT event_id, memory_id, recorded_at, event_type, delta, actor, caused_by, schema_version
		FROM memory_events WHERE memory_id = ? ORDER BY recorded_at ASC, event_id ASC
	`, memoryID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []model.MemoryEvent
	for rows.Next() {
		e, err := rowToEvent(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}

// ListEventsSince returns memoryID's events recorded strictly after afterID,
// letting replay resume from a snapshot rather than rescanning the whole log.
func ListEventsSince(ctx context.Context, q querier, memoryID string, afterID int64) ([]model.MemoryEvent, error) {
	const op = "query.ListEventsSince"
	rows, err := q.QueryContext(ctx, `
		SELECT event_id, memory_id, recorded_at, event_type, delta, actor, caused_by, schema_version
		FROM memory_events WHERE memory_id = ? AND event_id > ? ORDER BY recorded_at ASC, event_id ASC
	`, memoryID, afterID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []model.MemoryEvent
	for rows.Next() {
		e, err := rowToEvent(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}

// InsertSnapshot persists a full-state snapshot of memoryID, one per
// (memory_id, as_of) pair.
func InsertSnapshot(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, s model.Snapshot) error {
	const op = "query.InsertSnapshot"
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (memory_id, as_of, full_state, reason) VALUES (?, ?, ?, ?)
	`, s.MemoryID, timeToStr(s.AsOf), s.FullState, string(s.Reason))
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

func rowToSnapshot(op string, row scanner) (model.Snapshot, error) {
	var s model.Snapshot
	var asOf, reason string
	err := row.Scan(&s.MemoryID, &asOf, &s.FullState, &reason)
	if err == sql.ErrNoRows {
		return model.Snapshot{}, errs.New(errs.KindNotFound, op)
	}
	if err != nil {
		return model.Snapshot{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	s.Reason = model.SnapshotReason(reason)
	t, err := strToTime(op, "as_of", asOf)
	if err != nil {
		return model.Snapshot{}, err
	}
	s.AsOf = t
	return s, nil
}

// LatestSnapshotBefore returns the most recent snapshot at or before target,
// the acceleration point for reconstruct_at.
func LatestSnapshotBefore(ctx context.Context, q querier, memoryID string, target time.Time) (model.Snapshot, bool, error) {
	const op = "query.LatestSnapshotBefore"
	row := q.QueryRowContext(ctx, `
		SELECT memory_id, as_of, full_state, reason FROM snapshots
		WHERE memory_id = ? AND as_of <= ? ORDER BY as_of DESC LIMIT 1
	`, memoryID, timeToStr(target))
	s, err := rowToSnapshot(op, row)
	if errs.Of(err, errs.KindNotFound) {
		return model.Snapshot{}, false, nil
	}
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return s, true, nil
}

// CountEventsSince counts events recorded for memoryID after afterID, used to
// decide whether an event-count-triggered snapshot is due.
func CountEventsSince(ctx context.Context, q querier, memoryID string, afterID int64) (int, error) {
	const op = "query.CountEventsSince"
	var n int
	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_events WHERE memory_id = ? AND event_id > ?`, memoryID, afterID)
	if err := row.Scan(&n); err != nil {
		return 0, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return n, nil
}

// ListMemoryIDsAsOf returns every memory id whose Created event was recorded
// at or before target, the membership set the view engine snapshots.
func ListMemoryIDsAsOf(ctx context.Context, q querier, target time.Time) ([]string, error) {
	const op = "query.ListMemoryIDsAsOf"
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT memory_id FROM memory_events
		WHERE event_type = ? AND recorded_at <= ?
	`, string(model.EventCreated), timeToStr(target))
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

// CountEventsAfter counts events recorded strictly after since across every
// memory, the "has anything happened since the last auto view" check the
// view engine's refresh scheduler runs.
func CountEventsAfter(ctx context.Context, q querier, since time.Time) (int, error) {
	const op = "query.CountEventsAfter"
	var n int
	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_events WHERE recorded_at > ?`, timeToStr(since))
	if err := row.Scan(&n); err != nil {
		return 0, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return n, nil
}

// causedByLabel renders a CausedBy event-id slice for logging/narration.
func causedByLabel(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
