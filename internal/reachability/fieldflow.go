package reachability

import (
	"context"
	"database/sql"
	"strings"

	"cortexstore/internal/query"
)

var transformPatterns = []string{
	"transform", "convert", "map", "normalize", "sanitize", "redact",
	"encrypt", "decrypt", "hash", "mask", "format", "parse",
}

// TrackFieldFlow follows table.field forward from fromID through the call
// graph up to maxDepth hops (0 uses the engine default), recording one hop
// per visited function and whether that function's name suggests it
// transforms the value in transit. Cycles terminate by never revisiting a
// node, matching bfsTraverse's rule.
func (e *Engine) TrackFieldFlow(ctx context.Context, fromID, table, field string, maxDepth int) (FieldFlowResult, error) {
	if maxDepth <= 0 {
		maxDepth = e.defaultMaxDepth()
	}

	var result FieldFlowResult
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		r, err := trackFieldFlow(ctx, db, fromID, table, field, maxDepth)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// TrackMultipleFields runs TrackFieldFlow independently for each (table,
// field) pair named in fields, the batch form used when auditing every
// sensitive column a function touches at once.
func (e *Engine) TrackMultipleFields(ctx context.Context, fromID string, fields []FieldRef, maxDepth int) ([]FieldFlowResult, error) {
	results := make([]FieldFlowResult, 0, len(fields))
	for _, f := range fields {
		r, err := e.TrackFieldFlow(ctx, fromID, f.Table, f.Field, maxDepth)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// FieldRef names one table.field pair to track.
type FieldRef struct {
	Table string
	Field string
}

func trackFieldFlow(ctx context.Context, db *sql.DB, fromID, table, field string, maxDepth int) (FieldFlowResult, error) {
	visited := map[string]bool{fromID: true}
	type frame struct {
		node  string
		depth int
	}
	queue := []frame{{fromID, 0}}

	var hops []FieldFlowHop
	var accessPoints []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		fn, err := query.GetFunction(ctx, db, cur.node)
		if err != nil {
			continue
		}
		transformed := matchesAny(strings.ToLower(fn.Name), transformPatterns)
		hops = append(hops, FieldFlowHop{
			FunctionID:  cur.node,
			Table:       table,
			Field:       field,
			Transformed: transformed,
			Depth:       cur.depth,
		})

		if cur.depth == 0 || touchesTable(ctx, db, cur.node, table) {
			accessPoints = append(accessPoints, cur.node)
		}

		if cur.depth >= maxDepth {
			continue
		}

		edges, err := query.ListCallEdgesFrom(ctx, db, cur.node)
		if err != nil {
			return FieldFlowResult{}, err
		}
		for _, edge := range edges {
			if edge.CalleeID == cur.node || visited[edge.CalleeID] {
				continue
			}
			visited[edge.CalleeID] = true
			queue = append(queue, frame{edge.CalleeID, cur.depth + 1})
		}
	}

	return FieldFlowResult{
		OriginTable:  table,
		OriginField:  field,
		Sensitivity:  classifyField(field),
		Hops:         hops,
		AccessPoints: accessPoints,
	}, nil
}

func touchesTable(ctx context.Context, db *sql.DB, functionID, table string) bool {
	accesses, err := query.ListDataAccess(ctx, db, functionID)
	if err != nil {
		return false
	}
	for _, a := range accesses {
		if a.Table == table {
			return true
		}
	}
	return false
}
