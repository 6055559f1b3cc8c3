package reachability

import (
	"context"
	"database/sql"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// cteTraverse computes the same reachable set as bfsTraverse but entirely in
// SQL via a recursive CTE, the large-graph path §4.9 calls for once the call
// graph crosses ReachabilityConfig.CTECrossoverNodes nodes — no full graph
// load, O(1) Go-side memory regardless of graph size.
func cteTraverse(ctx context.Context, db *sql.DB, rootID string, direction model.ReachabilityDirection, maxDepth int) (TraversalResult, error) {
	const op = "reachability.cteTraverse"
	if maxDepth <= 0 {
		return TraversalResult{EngineUsed: EngineCTE}, nil
	}

	callerCol, calleeCol := "caller_id", "callee_id"
	if direction == model.DirectionInverse {
		callerCol, calleeCol = "callee_id", "caller_id"
	}

	// visited threads a ",id,id,id," trail through the recursion so a cycle
	// check can run against the current row's own column instead of a second
	// reference to the recursive table — SQLite only allows one.
	query := `
		WITH RECURSIVE reach(node, depth, visited) AS (
			SELECT ? AS node, 0 AS depth, ',' || ? || ',' AS visited
			UNION ALL
			SELECT ce.` + calleeCol + `, r.depth + 1, r.visited || ce.` + calleeCol + ` || ','
			FROM call_edges ce
			JOIN reach r ON ce.` + callerCol + ` = r.node
			WHERE r.depth < ?
			  AND ce.` + calleeCol + ` != ce.` + callerCol + `
			  AND r.visited NOT LIKE '%,' || ce.` + calleeCol + ` || ',%'
		)
		SELECT node, MIN(depth) FROM reach GROUP BY node
	`
	rows, err := db.QueryContext(ctx, query, rootID, rootID, maxDepth)
	if err != nil {
		return TraversalResult{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var nodes []string
	maxSeenDepth := 0
	for rows.Next() {
		var node string
		var depth int
		if err := rows.Scan(&node, &depth); err != nil {
			return TraversalResult{}, errs.Wrap(errs.KindSqliteError, op, err)
		}
		nodes = append(nodes, node)
		if depth > maxSeenDepth {
			maxSeenDepth = depth
		}
	}
	if err := rows.Err(); err != nil {
		return TraversalResult{}, errs.Wrap(errs.KindSqliteError, op, err)
	}

	return TraversalResult{ReachableNodes: nodes, MaxDepth: maxSeenDepth, EngineUsed: EngineCTE}, nil
}
