package reachability

import (
	"container/heap"
	"context"
	"database/sql"

	"cortexstore/internal/query"
)

// edgeWeight turns a call edge's resolution confidence into a Dijkstra
// weight: a confident edge (confidence ~1) costs ~0, an uncertain edge
// (confidence ~0) costs ~1, so the shortest path prefers well-resolved
// call chains over speculative ones.
func edgeWeight(confidence float64) float64 {
	w := 1 - confidence
	if w < 0 {
		return 0
	}
	return w
}

type pqItem struct {
	node string
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPath runs Dijkstra from fromID to toID over forward call edges,
// weighting each hop by edgeWeight. Distance 0 with a single-node Nodes
// slice means fromID == toID; an empty Nodes slice with no error means no
// path exists.
func (e *Engine) ShortestPath(ctx context.Context, fromID, toID string) (PathResult, error) {
	if fromID == toID {
		return PathResult{Nodes: []string{fromID}, Distance: 0}, nil
	}

	var result PathResult
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		r, err := dijkstra(ctx, db, fromID, toID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func dijkstra(ctx context.Context, db *sql.DB, fromID, toID string) (PathResult, error) {
	dist := map[string]float64{fromID: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := &priorityQueue{{node: fromID, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.node == toID {
			break
		}

		edges, err := query.ListCallEdgesFrom(ctx, db, cur.node)
		if err != nil {
			return PathResult{}, err
		}
		for _, edge := range edges {
			if edge.CalleeID == cur.node {
				continue // self-loop
			}
			nd := cur.dist + edgeWeight(edge.Confidence)
			if existing, ok := dist[edge.CalleeID]; !ok || nd < existing {
				dist[edge.CalleeID] = nd
				prev[edge.CalleeID] = cur.node
				heap.Push(pq, pqItem{node: edge.CalleeID, dist: nd})
			}
		}
	}

	if _, ok := dist[toID]; !ok {
		return PathResult{}, nil
	}

	var nodes []string
	for n := toID; ; {
		nodes = append([]string{n}, nodes...)
		if n == fromID {
			break
		}
		p, ok := prev[n]
		if !ok {
			return PathResult{}, nil
		}
		n = p
	}
	return PathResult{Nodes: nodes, Distance: dist[toID]}, nil
}

// KShortestPaths returns up to k distinct shortest paths from fromID to
// toID, via Yen's algorithm deviating from the previous best path one edge
// at a time. Results are sorted by ascending distance.
func (e *Engine) KShortestPaths(ctx context.Context, fromID, toID string, k int) ([]PathResult, error) {
	if k <= 0 {
		return nil, nil
	}

	var results []PathResult
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		r, err := yenKShortest(ctx, db, fromID, toID, k)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	return results, err
}

func yenKShortest(ctx context.Context, db *sql.DB, fromID, toID string, k int) ([]PathResult, error) {
	first, err := dijkstra(ctx, db, fromID, toID)
	if err != nil {
		return nil, err
	}
	if len(first.Nodes) == 0 {
		return nil, nil
	}

	best := []PathResult{first}
	var candidates []PathResult
	seen := map[string]bool{pathKey(first.Nodes): true}

	for len(best) < k {
		prevPath := best[len(best)-1]
		rootCost, err := pathCost(ctx, db, prevPath.Nodes)
		if err != nil {
			return nil, err
		}

		for i := 0; i < len(prevPath.Nodes)-1; i++ {
			spurNode := prevPath.Nodes[i]
			rootPath := append([]string{}, prevPath.Nodes[:i+1]...)

			removedEdges := map[[2]string]bool{}
			for _, p := range best {
				if len(p.Nodes) > i && pathShareRoot(p.Nodes, rootPath) {
					removedEdges[[2]string{p.Nodes[i], p.Nodes[i+1]}] = true
				}
			}
			removedNodes := map[string]bool{}
			for _, n := range rootPath[:len(rootPath)-1] {
				removedNodes[n] = true
			}

			spurResult, err := dijkstraFiltered(ctx, db, spurNode, toID, removedEdges, removedNodes)
			if err != nil {
				return nil, err
			}
			if len(spurResult.Nodes) == 0 {
				continue
			}

			totalNodes := append(append([]string{}, rootPath[:len(rootPath)-1]...), spurResult.Nodes...)
			totalDist := rootCost[i] + spurResult.Distance

			key := pathKey(totalNodes)
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, PathResult{Nodes: totalNodes, Distance: totalDist})
		}

		if len(candidates) == 0 {
			break
		}
		sortPathResultsByDistance(candidates)
		best = append(best, candidates[0])
		candidates = candidates[1:]
	}

	if len(best) > k {
		best = best[:k]
	}
	return best, nil
}

// pathCost returns, for each index i, the cumulative edge weight of
// nodes[0..i] — the cost of the root path a spur at i would be grafted onto.
func pathCost(ctx context.Context, db *sql.DB, nodes []string) ([]float64, error) {
	cost := make([]float64, len(nodes))
	for i := 1; i < len(nodes); i++ {
		edges, err := query.ListCallEdgesFrom(ctx, db, nodes[i-1])
		if err != nil {
			return nil, err
		}
		w := 1.0
		for _, e := range edges {
			if e.CalleeID == nodes[i] {
				w = edgeWeight(e.Confidence)
				break
			}
		}
		cost[i] = cost[i-1] + w
	}
	return cost, nil
}

func dijkstraFiltered(ctx context.Context, db *sql.DB, fromID, toID string, removedEdges map[[2]string]bool, removedNodes map[string]bool) (PathResult, error) {
	if fromID == toID {
		return PathResult{Nodes: []string{fromID}, Distance: 0}, nil
	}

	dist := map[string]float64{fromID: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := &priorityQueue{{node: fromID, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.node == toID {
			break
		}

		edges, err := query.ListCallEdgesFrom(ctx, db, cur.node)
		if err != nil {
			return PathResult{}, err
		}
		for _, edge := range edges {
			if edge.CalleeID == cur.node {
				continue
			}
			if removedNodes[edge.CalleeID] {
				continue
			}
			if removedEdges[[2]string{edge.CallerID, edge.CalleeID}] {
				continue
			}
			nd := cur.dist + edgeWeight(edge.Confidence)
			if existing, ok := dist[edge.CalleeID]; !ok || nd < existing {
				dist[edge.CalleeID] = nd
				prev[edge.CalleeID] = cur.node
				heap.Push(pq, pqItem{node: edge.CalleeID, dist: nd})
			}
		}
	}

	if _, ok := dist[toID]; !ok {
		return PathResult{}, nil
	}

	var nodes []string
	for n := toID; ; {
		nodes = append([]string{n}, nodes...)
		if n == fromID {
			break
		}
		p, ok := prev[n]
		if !ok {
			return PathResult{}, nil
		}
		n = p
	}
	return PathResult{Nodes: nodes, Distance: dist[toID]}, nil
}

func pathKey(nodes []string) string {
	key := ""
	for _, n := range nodes {
		key += n + ">"
	}
	return key
}

func pathShareRoot(nodes, root []string) bool {
	if len(nodes) < len(root) {
		return false
	}
	for i, n := range root {
		if nodes[i] != n {
			return false
		}
	}
	return true
}

func sortPathResultsByDistance(results []PathResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Distance < results[j-1].Distance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
