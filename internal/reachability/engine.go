package reachability

import (
	"context"
	"database/sql"
	"sync"

	"cortexstore/internal/config"
	"cortexstore/internal/logging"
	"cortexstore/internal/model"
	"cortexstore/internal/query"
	"cortexstore/internal/storage"

	"go.uber.org/zap"
)

const DefaultMaxDepth = 64

// Engine is the Reachability Engine (§4.9): it picks between an in-memory
// BFS and a SQL recursive CTE based on call-graph size, and wraps the
// traversal with the bounded reachability cache.
type Engine struct {
	mgr *storage.Manager
	cfg config.ReachabilityConfig
	log *zap.Logger

	cache *Cache

	mu  sync.RWMutex
	idx *nodeIndex
}

// NewEngine builds an Engine over mgr, reading ReachabilityConfig.
func NewEngine(mgr *storage.Manager, cfg config.ReachabilityConfig) *Engine {
	crossover := cfg.CTECrossoverNodes
	if crossover <= 0 {
		crossover = 10000
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cfg.CTECrossoverNodes = crossover
	cfg.CacheSize = cacheSize

	return &Engine{
		mgr:   mgr,
		cfg:   cfg,
		log:   logging.Get(logging.CategoryReachability),
		cache: NewCache(mgr, cacheSize),
	}
}

func (e *Engine) defaultMaxDepth() int {
	if e.cfg.DefaultMaxDepth > 0 {
		return e.cfg.DefaultMaxDepth
	}
	return DefaultMaxDepth
}

// Traverse computes the reachable set from rootID in direction up to
// maxDepth (0 uses the configured default), choosing BFS or CTE by current
// node count and caching the result keyed by (rootID, direction).
func (e *Engine) Traverse(ctx context.Context, rootID string, direction model.ReachabilityDirection, maxDepth int) (TraversalResult, error) {
	if maxDepth <= 0 {
		maxDepth = e.defaultMaxDepth()
	}

	cached, err := e.cache.Get(ctx, rootID, direction, func(ctx context.Context) (model.ReachabilityCache, error) {
		result, err := e.computeTraversal(ctx, rootID, direction, maxDepth)
		if err != nil {
			return model.ReachabilityCache{}, err
		}
		return model.ReachabilityCache{
			SourceNode:   rootID,
			Direction:    direction,
			ReachableSet: result.ReachableNodes,
			Sensitivity:  ClassifySensitivityTier(nil, result.ReachableNodes),
		}, nil
	})
	if err != nil {
		return TraversalResult{}, err
	}
	return TraversalResult{ReachableNodes: cached.ReachableSet}, nil
}

func (e *Engine) computeTraversal(ctx context.Context, rootID string, direction model.ReachabilityDirection, maxDepth int) (TraversalResult, error) {
	var nodeCount int
	var result TraversalResult
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		n, err := query.CountNodes(ctx, db)
		if err != nil {
			return err
		}
		nodeCount = n

		if nodeCount > e.cfg.CTECrossoverNodes {
			r, err := cteTraverse(ctx, db, rootID, direction, maxDepth)
			if err != nil {
				return err
			}
			result = r
			return nil
		}

		idx, err := e.nodeIndex(ctx, db)
		if err != nil {
			return err
		}
		r, err := bfsTraverse(ctx, db, idx, rootID, direction, maxDepth)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (e *Engine) nodeIndex(ctx context.Context, db *sql.DB) (*nodeIndex, error) {
	e.mu.RLock()
	if e.idx != nil {
		idx := e.idx
		e.mu.RUnlock()
		return idx, nil
	}
	e.mu.RUnlock()

	idx, err := buildNodeIndex(ctx, db)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.idx = idx
	e.mu.Unlock()
	return idx, nil
}

// RefreshNodeIndex forces the BFS node-id index to rebuild on its next use,
// after the call graph has changed under the engine.
func (e *Engine) RefreshNodeIndex() {
	e.mu.Lock()
	e.idx = nil
	e.mu.Unlock()
}

// InvalidateNode drops node's cached reachable sets in both directions.
func (e *Engine) InvalidateNode(ctx context.Context, node string) error {
	return e.cache.InvalidateNode(ctx, node)
}

// InvalidateAll clears every cached reachable set.
func (e *Engine) InvalidateAll(ctx context.Context) error {
	return e.cache.InvalidateAll(ctx)
}
