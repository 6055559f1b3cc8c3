package query

import (
	"context"
	"database/sql"
	"strings"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

func rowToFunction(op string, row scanner) (model.Function, error) {
	var (
		f                    model.Function
		isExported, isAsync  int
	)
	err := row.Scan(&f.ID, &f.File, &f.Name, &f.QualifiedName, &f.Language, &f.Line, &f.EndLine,
		&f.ParameterCount, &f.ReturnType, &isExported, &isAsync, &f.BodyHash, &f.SignatureHash)
	if err == sql.ErrNoRows {
		return model.Function{}, errs.New(errs.KindNotFound, op)
	}
	if err != nil {
		return model.Function{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	f.IsExported = isExported != 0
	f.IsAsync = isAsync != 0
	return f, nil
}

// GetFunction loads one function by id.
func GetFunction(ctx context.Context, q querier, id string) (model.Function, error) {
	const op = "query.GetFunction"
	row := q.QueryRowContext(ctx, `
		SELECT id, file, name, qualified_name, language, line, end_line, parameter_count,
		       return_type, is_exported, is_async, body_hash, signature_hash
		FROM functions WHERE id = ?
	`, id)
	return rowToFunction(op, row)
}

// ListFunctionsByFile returns every function parsed from path.
func ListFunctionsByFile(ctx context.Context, q querier, path string) ([]model.Function, error) {
	const op = "query.ListFunctionsByFile"
	rows, err := q.QueryContext(ctx, `
		SELECT id, file, name, qualified_name, language, line, end_line, parameter_count,
		       return_type, is_exported, is_async, body_hash, signature_hash
		FROM functions WHERE file = ? ORDER BY line ASC
	`, path)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []model.Function
	for rows.Next() {
		f, err := rowToFunction(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}

func rowToCallEdge(op string, row scanner) (model.CallEdge, error) {
	var e model.CallEdge
	var resolution string
	if err := row.Scan(&e.CallerID, &e.CalleeID, &resolution, &e.Confidence, &e.CallSiteLine); err != nil {
		return model.CallEdge{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	e.Resolution = model.CallResolution(resolution)
	return e, nil
}

// ListCallEdgesFrom returns every call edge caller→* for callerID — one hop
// of outgoing reachability.
func ListCallEdgesFrom(ctx context.Context, q querier, callerID string) ([]model.CallEdge, error) {
	const op = "query.ListCallEdgesFrom"
	rows, err := q.QueryContext(ctx, `
		SELECT caller_id, callee_id, resolution, confidence, call_site_line FROM call_edges WHERE caller_id = ?
	`, callerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()
	var out []model.CallEdge
	for rows.Next() {
		e, err := rowToCallEdge(op, rows)
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

// ListCallEdgesTo returns every call edge *→calleeID — one hop of incoming
// (inverse) reachability.
func ListCallEdgesTo(ctx context.Context, q querier, calleeID string) ([]model.CallEdge, error) {
	const op = "query.ListCallEdgesTo"
	rows, err := q.QueryContext(ctx, `
		SELECT caller_id, callee_id, resolution, confidence, call_site_line FROM call_edges WHERE callee_id = ?
	`, calleeID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()
	var out []model.CallEdge
	for rows.Next() {
		e, err := rowToCallEdge(op, rows)
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

// AllNodeIDs returns every function id known to the call graph, the node
// universe reachability's bitmap/LRU cache indexes against.
func AllNodeIDs(ctx context.Context, q querier) ([]string, error) {
	const op = "query.AllNodeIDs"
	rows, err := q.QueryContext(ctx, `SELECT id FROM functions`)
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

// CountNodes reports the call graph's node count, the figure reachability's
// BFS-vs-CTE crossover decision compares against its configured threshold.
func CountNodes(ctx context.Context, q querier) (int, error) {
	const op = "query.CountNodes"
	var n int
	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM functions`)
	if err := row.Scan(&n); err != nil {
		return 0, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return n, nil
}

// ListDataAccess returns every table a function reads, writes, or deletes.
func ListDataAccess(ctx context.Context, q querier, functionID string) ([]model.DataAccess, error) {
	const op = "query.ListDataAccess"
	rows, err := q.QueryContext(ctx, `
		SELECT function_id, table_name, operation, fields, framework_hint FROM data_access WHERE function_id = ?
	`, functionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []model.DataAccess
	for rows.Next() {
		var (
			d        model.DataAccess
			op2      string
			fields   string
		)
		if err := rows.Scan(&d.FunctionID, &d.Table, &op2, &fields, &d.FrameworkHint); err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		d.Operation = model.DataAccessOp(op2)
		if fields != "" {
			d.Fields = strings.Split(fields, ",")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}

// GetReachabilityCache loads a cached reachable-set row for (sourceNode,
// direction), if present.
func GetReachabilityCache(ctx context.Context, q querier, sourceNode string, direction model.ReachabilityDirection) (model.ReachabilityCache, bool, error) {
	const op = "query.GetReachabilityCache"
	row := q.QueryRowContext(ctx, `
		SELECT source_node, direction, reachable_set, sensitivity FROM reachability_cache
		WHERE source_node = ? AND direction = ?
	`, sourceNode, string(direction))

	var (
		c           model.ReachabilityCache
		dir         string
		setJSON     string
		sensitivity string
	)
	err := row.Scan(&c.SourceNode, &dir, &setJSON, &sensitivity)
	if err == sql.ErrNoRows {
		return model.ReachabilityCache{}, false, nil
	}
	if err != nil {
		return model.ReachabilityCache{}, false, errs.Wrap(errs.KindSqliteError, op, err)
	}
	c.Direction = model.ReachabilityDirection(dir)
	c.Sensitivity = model.SensitivityTier(sensitivity)
	if err := unmarshalJSON(op, "reachable_set", setJSON, &c.ReachableSet); err != nil {
		return model.ReachabilityCache{}, false, err
	}
	return c, true, nil
}

// UpsertReachabilityCache writes (or replaces) a cached reachable-set row.
func UpsertReachabilityCache(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, c model.ReachabilityCache) error {
	const op = "query.UpsertReachabilityCache"
	setJSON, err := marshalJSON(op, "reachable_set", c.ReachableSet)
	if err != nil {
		return err
	}
	_, execErr := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO reachability_cache (source_node, direction, reachable_set, sensitivity)
		VALUES (?, ?, ?, ?)
	`, c.SourceNode, string(c.Direction), setJSON, string(c.Sensitivity))
	if execErr != nil {
		return errs.Wrap(errs.KindSqliteError, op, execErr)
	}
	return nil
}

// DeleteReachabilityCache drops both directions' cached rows for node, the
// effect of invalidate_node(id) (§4.9).
func DeleteReachabilityCache(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, node string) error {
	const op = "query.DeleteReachabilityCache"
	_, err := q.ExecContext(ctx, `DELETE FROM reachability_cache WHERE source_node = ?`, node)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

// DeleteAllReachabilityCache clears every cached row, the effect of
// invalidate_all (§4.9).
func DeleteAllReachabilityCache(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}) error {
	const op = "query.DeleteAllReachabilityCache"
	_, err := q.ExecContext(ctx, `DELETE FROM reachability_cache`)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}
