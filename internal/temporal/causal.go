package temporal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cortexstore/internal/query"
)

// DefaultCausalTraversalDepth bounds BFS depth when the caller doesn't
// specify one (config.TemporalConfig.MaxCausalTraversalDepth <= 0), keeping
// a traversal from walking the entire causal graph.
const DefaultCausalTraversalDepth = 5

// CausalHop is one edge traversed from the trace's root, in BFS order.
type CausalHop struct {
	Depth    int
	From     string
	Relation query.CausalRelation
	To       string
	Strength float64
	Evidence []string
}

// CausalTrace is the bounded-depth BFS expansion of a memory's outgoing
// causal edges, the input to narrative rendering.
type CausalTrace struct {
	Root string
	Hops []CausalHop
}

// TraverseCausal runs a breadth-first expansion of rootID's outgoing causal
// edges to at most maxDepth hops, visiting each (memory, relation) edge at
// most once to stay terminating on cyclic graphs.
func TraverseCausal(ctx context.Context, db *sql.DB, rootID string, maxDepth int) (CausalTrace, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultCausalTraversalDepth
	}

	trace := CausalTrace{Root: rootID}
	visited := map[string]bool{rootID: true}
	frontier := []string{rootID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			edges, err := query.ListOutgoingCausalEdges(ctx, db, id)
			if err != nil {
				return CausalTrace{}, err
			}
			for _, e := range edges {
				trace.Hops = append(trace.Hops, CausalHop{
					Depth:    depth,
					From:     e.FromMemoryID,
					Relation: e.Relation,
					To:       e.ToMemoryID,
					Strength: e.Strength,
					Evidence: e.Evidence,
				})
				if !visited[e.ToMemoryID] {
					visited[e.ToMemoryID] = true
					next = append(next, e.ToMemoryID)
				}
			}
		}
		frontier = next
	}

	return trace, nil
}

// RenderNarrative renders trace as a human-readable causal story, a pure
// transformation of the trace with no further storage access. Hops are
// grouped by depth in traversal order.
func RenderNarrative(trace CausalTrace) string {
	if len(trace.Hops) == 0 {
		return fmt.Sprintf("%s has no recorded causal links.", trace.Root)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Causal trace from %s:\n", trace.Root)

	depth := -1
	for _, h := range trace.Hops {
		if h.Depth != depth {
			depth = h.Depth
			fmt.Fprintf(&b, "depth %d:\n", depth)
		}
		fmt.Fprintf(&b, "  %s --%s(%.2f)--> %s", h.From, h.Relation, h.Strength, h.To)
		if len(h.Evidence) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(h.Evidence, "; "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
