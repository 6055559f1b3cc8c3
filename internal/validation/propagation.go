package validation

// propagationDecay is the per-hop attenuation applied to a contradiction's
// confidence delta as it spreads along relationship edges.
const propagationDecay = 0.6

// maxPropagationDepth bounds how many hops a delta travels before it's
// dropped, keeping a dense graph from turning one contradiction into a
// network-wide confidence collapse.
const maxPropagationDepth = 3

// BaseDelta is the confidence penalty a contradiction of the given type
// applies at its source, before any propagation decay.
func BaseDelta(t ContradictionType) float64 {
	switch t {
	case ContradictionDirect:
		return -0.3
	case ContradictionSupersession:
		return -0.2
	case ContradictionFeedback:
		return -0.15
	case ContradictionCrossPattern:
		return -0.1
	default:
		return 0
	}
}

// Propagate walks outward from sourceIDs along edges, applying BaseDelta(t)
// at depth 0 and decaying it by edge.Strength*propagationDecay per hop, up
// to maxPropagationDepth. When a memory is reachable by more than one path
// the most negative delta wins. overrideDelta, when non-nil, replaces
// BaseDelta(t) as the depth-0 magnitude.
func Propagate(sourceIDs []string, t ContradictionType, edges []RelationshipEdge, overrideDelta *float64) []Adjustment {
	base := BaseDelta(t)
	if overrideDelta != nil {
		base = *overrideDelta
	}
	if base == 0 {
		return nil
	}

	byID := make(map[string]int) // memory id -> index into result
	var result []Adjustment

	record := func(id string, delta float64, depth int) {
		if idx, ok := byID[id]; ok {
			if delta < result[idx].Delta {
				result[idx].Delta = delta
				result[idx].Depth = depth
			}
			return
		}
		byID[id] = len(result)
		result = append(result, Adjustment{MemoryID: id, Delta: delta, Depth: depth})
	}

	adjacency := make(map[string][]RelationshipEdge)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e)
		adjacency[e.TargetID] = append(adjacency[e.TargetID], RelationshipEdge{
			SourceID: e.TargetID, TargetID: e.SourceID,
			RelationshipType: e.RelationshipType, Strength: e.Strength, Evidence: e.Evidence,
		})
	}

	// BFS level by level so that, within one level, every incoming edge to
	// a not-yet-finalized node is considered before the node is finalized
	// — finalizing eagerly on the first edge seen would let an arbitrary
	// edge ordering pick a weaker delta over a stronger one reaching the
	// same node at the same depth.
	type frontierEntry struct {
		id    string
		delta float64
	}
	finalized := make(map[string]bool)
	var frontier []frontierEntry
	for _, id := range sourceIDs {
		record(id, base, 0)
		finalized[id] = true
		frontier = append(frontier, frontierEntry{id: id, delta: base})
	}

	for depth := 0; len(frontier) > 0 && depth < maxPropagationDepth; depth++ {
		candidates := make(map[string]float64)
		for _, f := range frontier {
			for _, e := range adjacency[f.id] {
				if finalized[e.TargetID] {
					continue
				}
				decayed := f.delta * e.Strength * propagationDecay
				if cur, ok := candidates[e.TargetID]; !ok || decayed < cur {
					candidates[e.TargetID] = decayed
				}
			}
		}
		var next []frontierEntry
		for id, delta := range candidates {
			finalized[id] = true
			record(id, delta, depth+1)
			next = append(next, frontierEntry{id: id, delta: delta})
		}
		frontier = next
	}

	return result
}
