package reachability

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"cortexstore/internal/model"
	"cortexstore/internal/query"
)

// maxPathsPerQuery bounds how many distinct paths findPathsBFS accumulates
// between two nodes, so a densely connected graph can't make a single path
// query unbounded.
const maxPathsPerQuery = 50

// nodeIndex maps function ids to dense uint32 ids so traversal can track
// visited sets as roaring bitmaps instead of string sets.
type nodeIndex struct {
	toInt map[string]uint32
	toStr []string
}

func buildNodeIndex(ctx context.Context, db *sql.DB) (*nodeIndex, error) {
	ids, err := query.AllNodeIDs(ctx, db)
	if err != nil {
		return nil, err
	}
	idx := &nodeIndex{toInt: make(map[string]uint32, len(ids)), toStr: make([]string, 0, len(ids))}
	for _, id := range ids {
		idx.toInt[id] = uint32(len(idx.toStr))
		idx.toStr = append(idx.toStr, id)
	}
	return idx, nil
}

// id returns n's dense id, allocating one if n wasn't part of the universe
// AllNodeIDs saw (e.g. a node inserted after the index was built).
func (idx *nodeIndex) id(n string) uint32 {
	if v, ok := idx.toInt[n]; ok {
		return v
	}
	v := uint32(len(idx.toStr))
	idx.toInt[n] = v
	idx.toStr = append(idx.toStr, n)
	return v
}

func (idx *nodeIndex) name(v uint32) string {
	if int(v) < len(idx.toStr) {
		return idx.toStr[v]
	}
	return ""
}

func edgesFrom(ctx context.Context, db *sql.DB, node string, direction model.ReachabilityDirection) ([]string, error) {
	if direction == model.DirectionInverse {
		edges, err := query.ListCallEdgesTo(ctx, db, node)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(edges))
		for i, e := range edges {
			out[i] = e.CallerID
		}
		return out, nil
	}
	edges, err := query.ListCallEdgesFrom(ctx, db, node)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.CalleeID
	}
	return out, nil
}

// bfsTraverse walks the call graph forward or inverse from rootID up to
// maxDepth (0 = reach nothing), ignoring self-loops and terminating cycles
// by never revisiting a node — the BFS rules of §4.9.
func bfsTraverse(ctx context.Context, db *sql.DB, idx *nodeIndex, rootID string, direction model.ReachabilityDirection, maxDepth int) (TraversalResult, error) {
	visited := roaring.New()
	rootBit := idx.id(rootID)
	visited.Add(rootBit)

	type frame struct {
		node  string
		depth int
	}
	queue := []frame{{rootID, 0}}
	maxSeenDepth := 0
	reachable := []string{rootID}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		neighbors, err := edgesFrom(ctx, db, cur.node, direction)
		if err != nil {
			return TraversalResult{}, err
		}
		for _, next := range neighbors {
			if next == cur.node {
				continue // self-loop
			}
			bit := idx.id(next)
			if visited.Contains(bit) {
				continue
			}
			visited.Add(bit)
			reachable = append(reachable, next)
			if cur.depth+1 > maxSeenDepth {
				maxSeenDepth = cur.depth + 1
			}
			queue = append(queue, frame{next, cur.depth + 1})
		}
	}

	if maxDepth <= 0 {
		return TraversalResult{ReachableNodes: nil, MaxDepth: 0, EngineUsed: EngineBFS}, nil
	}
	return TraversalResult{ReachableNodes: reachable, MaxDepth: maxSeenDepth, EngineUsed: EngineBFS}, nil
}

// findPathsBFS enumerates up to maxPathsPerQuery distinct paths from fromID
// to toID within maxDepth hops, grounded on the original engine's
// find_paths_bfs (visited keyed by (node, depth) so distinct-length paths
// through the same node are still explored).
func findPathsBFS(ctx context.Context, db *sql.DB, fromID, toID string, maxDepth int) ([][]CallPathNode, error) {
	type frame struct {
		node  string
		path  []CallPathNode
		depth int
	}
	start := frame{node: fromID, path: []CallPathNode{{FunctionID: fromID}}, depth: 0}
	queue := []frame{start}
	visited := make(map[string]struct{})

	var paths [][]CallPathNode
	for len(queue) > 0 && len(paths) < maxPathsPerQuery {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth > maxDepth {
			continue
		}
		if cur.node == toID {
			paths = append(paths, cur.path)
			continue
		}
		visitKey := fmt.Sprintf("%s@%d", cur.node, cur.depth)
		if _, ok := visited[visitKey]; ok {
			continue
		}
		visited[visitKey] = struct{}{}

		neighbors, err := edgesFrom(ctx, db, cur.node, model.DirectionForward)
		if err != nil {
			return nil, err
		}
		for _, next := range neighbors {
			newPath := append(append([]CallPathNode{}, cur.path...), CallPathNode{FunctionID: next})
			queue = append(queue, frame{node: next, path: newPath, depth: cur.depth + 1})
		}
	}
	return paths, nil
}
