package query

import (
	"context"
	"database/sql"
	"strings"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// InsertMemory writes memory, its four link rows, and a Created event inside
// tx, all-or-nothing, mirroring the original insert_memory/insert_links
// atomicity: memory CRUD and event emission commit together or not at all.
func InsertMemory(ctx context.Context, tx *sql.Tx, m model.BaseMemory) error {
	const op = "query.InsertMemory"

	tagsJSON, err := marshalJSON(op, "tags", m.Tags)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (
			id, memory_type, content, summary, transaction_time, valid_time, valid_until,
			confidence, importance, last_accessed, access_count, tags, archived,
			superseded_by, supersedes, namespace, source_agent, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, string(m.MemoryType), m.Content, m.Summary,
		timeToStr(m.TransactionTime), timeToStr(m.ValidTime), nullTimeToStr(m.ValidUntil),
		m.Confidence, string(m.Importance), nullTimeToStr(&m.LastAccessed), m.AccessCount,
		tagsJSON, boolInt(m.Archived), nullString(m.SupersededBy), nullString(m.Supersedes),
		m.Namespace, m.SourceAgent, m.ContentHash,
	)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}

	if err := insertLinks(ctx, tx, m); err != nil {
		return err
	}
	if err := SyncMemorySummary(ctx, tx, m.ID, m.Summary); err != nil {
		return err
	}

	delta, err := marshalJSON(op, "delta", m)
	if err != nil {
		return err
	}
	if err := appendEventTx(ctx, tx, model.MemoryEvent{
		MemoryID:      m.ID,
		RecordedAt:    m.TransactionTime,
		EventType:     model.EventCreated,
		Delta:         []byte(delta),
		Actor:         model.ActorSystem,
		SchemaVersion: model.CurrentSchemaVersion,
	}); err != nil {
		return err
	}

	return nil
}

func insertLinks(ctx context.Context, tx *sql.Tx, m model.BaseMemory) error {
	const op = "query.insertLinks"
	for _, p := range m.LinkedPatterns {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_patterns (memory_id, pattern_id) VALUES (?, ?)`, m.ID, p); err != nil {
			return errs.Wrap(errs.KindSqliteError, op, err)
		}
	}
	for _, c := range m.LinkedConstraints {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_constraints (memory_id, constraint_id) VALUES (?, ?)`, m.ID, c); err != nil {
			return errs.Wrap(errs.KindSqliteError, op, err)
		}
	}
	for _, f := range m.LinkedFiles {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_files (memory_id, file) VALUES (?, ?)`, m.ID, f); err != nil {
			return errs.Wrap(errs.KindSqliteError, op, err)
		}
	}
	for _, fn := range m.LinkedFunctions {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO memory_functions (memory_id, function_id) VALUES (?, ?)`, m.ID, fn); err != nil {
			return errs.Wrap(errs.KindSqliteError, op, err)
		}
	}
	return nil
}

func loadLinks(ctx context.Context, q querier, m *model.BaseMemory) error {
	const op = "query.loadLinks"

	load := func(query string) ([]string, error) {
		rows, err := q.QueryContext(ctx, query, m.ID)
		if err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return nil, errs.Wrap(errs.KindSqliteError, op, err)
			}
			out = append(out, v)
		}
		return out, rows.Err()
	}

	var err error
	if m.LinkedPatterns, err = load(`SELECT pattern_id FROM memory_patterns WHERE memory_id = ?`); err != nil {
		return err
	}
	if m.LinkedConstraints, err = load(`SELECT constraint_id FROM memory_constraints WHERE memory_id = ?`); err != nil {
		return err
	}
	if m.LinkedFiles, err = load(`SELECT file FROM memory_files WHERE memory_id = ?`); err != nil {
		return err
	}
	if m.LinkedFunctions, err = load(`SELECT function_id FROM memory_functions WHERE memory_id = ?`); err != nil {
		return err
	}
	return nil
}

// querier is the subset of *sql.DB/*sql.Tx that row-loading helpers need, so
// they work under either a transaction or a plain reader connection.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const memoryColumns = `id, memory_type, content, summary, transaction_time, valid_time, valid_until,
	confidence, importance, last_accessed, access_count, tags, archived,
	superseded_by, supersedes, namespace, source_agent, content_hash`

// scanner abstracts *sql.Row and *sql.Rows for the shared row parser: both
// expose Scan(dest ...interface{}) error.
type scanner interface {
	Scan(dest ...interface{}) error
}

func rowToMemory(op string, row scanner) (model.BaseMemory, error) {
	var (
		m                         model.BaseMemory
		memoryType, importance    string
		txTime, validTime         string
		validUntil, lastAccessed  sql.NullString
		tagsJSON                  string
		archived                  int
		supersededBy, supersedes  sql.NullString
	)
	err := row.Scan(
		&m.ID, &memoryType, &m.Content, &m.Summary, &txTime, &validTime, &validUntil,
		&m.Confidence, &importance, &lastAccessed, &m.AccessCount, &tagsJSON, &archived,
		&supersededBy, &supersedes, &m.Namespace, &m.SourceAgent, &m.ContentHash,
	)
	if err == sql.ErrNoRows {
		return model.BaseMemory{}, errs.New(errs.KindNotFound, op)
	}
	if err != nil {
		return model.BaseMemory{}, errs.Wrap(errs.KindSqliteError, op, err)
	}

	m.MemoryType = model.MemoryType(memoryType)
	m.Importance = model.Importance(importance)
	m.Archived = archived != 0
	m.SupersededBy = supersededBy.String
	m.Supersedes = supersedes.String

	if m.TransactionTime, err = strToTime(op, "transaction_time", txTime); err != nil {
		return model.BaseMemory{}, err
	}
	if m.ValidTime, err = strToTime(op, "valid_time", validTime); err != nil {
		return model.BaseMemory{}, err
	}
	if m.ValidUntil, err = strToNullTime(op, "valid_until", validUntil); err != nil {
		return model.BaseMemory{}, err
	}
	if la, err := strToNullTime(op, "last_accessed", lastAccessed); err != nil {
		return model.BaseMemory{}, err
	} else if la != nil {
		m.LastAccessed = *la
	}
	if err := unmarshalJSON(op, "tags", tagsJSON, &m.Tags); err != nil {
		return model.BaseMemory{}, err
	}
	return m, nil
}

// GetMemory loads a memory by id, including its four link sets. Returns
// errs.KindNotFound if no such memory exists.
func GetMemory(ctx context.Context, q querier, id string) (model.BaseMemory, error) {
	const op = "query.GetMemory"
	row := q.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)

	m, err := rowToMemory(op, row)
	if err != nil {
		return model.BaseMemory{}, err
	}
	if err := loadLinks(ctx, q, &m); err != nil {
		return model.BaseMemory{}, err
	}
	return m, nil
}

// UpdateMemory overwrites memory's mutable fields and re-syncs its link
// tables, appending contentUpdated/tagsModified events as applicable inside
// the same transaction as the row update.
func UpdateMemory(ctx context.Context, tx *sql.Tx, m model.BaseMemory, eventType model.MemoryEventType, actor model.EventActor, delta []byte) error {
	const op = "query.UpdateMemory"

	tagsJSON, err := marshalJSON(op, "tags", m.Tags)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE memories SET
			content = ?, summary = ?, valid_time = ?, valid_until = ?, confidence = ?,
			importance = ?, last_accessed = ?, access_count = ?, tags = ?, archived = ?,
			superseded_by = ?, supersedes = ?, content_hash = ?
		WHERE id = ?
	`,
		m.Content, m.Summary, timeToStr(m.ValidTime), nullTimeToStr(m.ValidUntil), m.Confidence,
		string(m.Importance), nullTimeToStr(&m.LastAccessed), m.AccessCount, tagsJSON, boolInt(m.Archived),
		nullString(m.SupersededBy), nullString(m.Supersedes), m.ContentHash, m.ID,
	)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.KindNotFound, op)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_patterns WHERE memory_id = ?`, m.ID); err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_constraints WHERE memory_id = ?`, m.ID); err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_files WHERE memory_id = ?`, m.ID); err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_functions WHERE memory_id = ?`, m.ID); err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if err := insertLinks(ctx, tx, m); err != nil {
		return err
	}
	if err := SyncMemorySummary(ctx, tx, m.ID, m.Summary); err != nil {
		return err
	}

	if eventType != "" {
		if err := appendEventTx(ctx, tx, model.MemoryEvent{
			MemoryID:      m.ID,
			RecordedAt:    m.TransactionTime,
			EventType:     eventType,
			Delta:         delta,
			Actor:         actor,
			SchemaVersion: model.CurrentSchemaVersion,
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMemory removes a memory and (via ON DELETE CASCADE) its links,
// events, and snapshots.
func DeleteMemory(ctx context.Context, tx *sql.Tx, id string) error {
	const op = "query.DeleteMemory"
	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.KindNotFound, op)
	}
	return nil
}

// ListMemoriesOptions filters ListMemories.
type ListMemoriesOptions struct {
	Namespace        string
	IncludeArchived  bool
	Limit            int
}

// ListMemories returns memories in a namespace (all namespaces if empty),
// ordered by transaction_time descending, without loading link sets (callers
// needing links should follow up with GetMemory per id).
func ListMemories(ctx context.Context, q querier, opts ListMemoriesOptions) ([]model.BaseMemory, error) {
	const op = "query.ListMemories"

	var b strings.Builder
	b.WriteString(`SELECT ` + memoryColumns + ` FROM memories WHERE 1=1`)
	var args []interface{}
	if opts.Namespace != "" {
		b.WriteString(" AND namespace = ?")
		args = append(args, opts.Namespace)
	}
	if !opts.IncludeArchived {
		b.WriteString(" AND archived = 0")
	}
	b.WriteString(" ORDER BY transaction_time DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
	}

	rows, err := q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []model.BaseMemory
	for rows.Next() {
		m, err := rowToMemory(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
