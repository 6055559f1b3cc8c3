// Package reachability implements the Reachability Engine (§4.9): dual
// BFS/CTE traversal, weighted shortest/k-shortest paths, sensitivity
// classification, a bounded cache, dead-code detection, and field flow
// tracking over the call graph.
package reachability

import "cortexstore/internal/model"

// CallPathNode is one hop of a traversal path, carrying enough of the
// function's identity to render a human-facing trace.
type CallPathNode struct {
	FunctionID string
	Name       string
	File       string
	Line       int
}

// TraversalResult is the engine-agnostic shape both BFS and CTE traversal
// return: {reachable_nodes, max_depth, engine_used} per §4.9.
type TraversalResult struct {
	ReachableNodes []string
	MaxDepth       int
	EngineUsed     string
}

// EngineBFS and EngineCTE name the two traversal strategies a TraversalResult
// reports it was computed by.
const (
	EngineBFS = "bfs"
	EngineCTE = "cte"
)

// PathResult is a weighted path between two nodes, distance 0 when source
// equals target and empty Nodes when no path exists.
type PathResult struct {
	Nodes    []string
	Distance float64
}

// SensitiveFieldAccess groups every path that reaches one (table, field)
// pair flagged by classifyField.
type SensitiveFieldAccess struct {
	Table       string
	Field       string
	Sensitivity model.SensitivityTier
	Paths       [][]CallPathNode
	AccessCount int
}

// FieldFlowHop is one step in a tracked field's propagation through calls.
type FieldFlowHop struct {
	FunctionID     string
	Table          string
	Field          string
	Transformed    bool
	Depth          int
}

// FieldFlowResult traces a named field from its origin access point through
// every call that subsequently touches it.
type FieldFlowResult struct {
	OriginTable  string
	OriginField  string
	Sensitivity  FieldSensitivity
	Hops         []FieldFlowHop
	AccessPoints []string // origin function plus downstream functions that access OriginTable (any field)
}
