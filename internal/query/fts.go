package query

import (
	"context"
	"database/sql"

	"cortexstore/internal/errs"
)

// FTSMatch is one ranked result from FTS5Search.
type FTSMatch struct {
	MemoryID string
	Rank     float64 // fts5's bm25(), lower is a better match
	Snippet  string
}

// SyncMemorySummary keeps memory_summaries_fts in step with a memory's
// current summary. InsertMemory and UpdateMemory call it inside their own
// transaction, since FTS5 content isn't kept current by triggers here.
func SyncMemorySummary(ctx context.Context, tx *sql.Tx, memoryID, summary string) error {
	const op = "query.SyncMemorySummary"
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_summaries_fts WHERE memory_id = ?`, memoryID); err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO memory_summaries_fts (memory_id, summary) VALUES (?, ?)`, memoryID, summary); err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

// FTS5Search ranks memories whose summary matches the FTS5 query syntax
// (terms, phrases, boolean operators), the "specialized query module"
// spec.md §4.4 defers to for full-text recall.
func FTS5Search(ctx context.Context, q querier, matchQuery string, limit int) ([]FTSMatch, error) {
	const op = "query.FTS5Search"
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.QueryContext(ctx, `
		SELECT memory_id, bm25(memory_summaries_fts), snippet(memory_summaries_fts, 1, '[', ']', '...', 10)
		FROM memory_summaries_fts WHERE memory_summaries_fts MATCH ? ORDER BY bm25(memory_summaries_fts) LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []FTSMatch
	for rows.Next() {
		var m FTSMatch
		if err := rows.Scan(&m.MemoryID, &m.Rank, &m.Snippet); err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}
