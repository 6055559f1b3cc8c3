package reachability

import (
	"container/list"
	"context"
	"database/sql"
	"sync"

	"golang.org/x/sync/singleflight"

	"cortexstore/internal/metrics"
	"cortexstore/internal/model"
	"cortexstore/internal/query"
	"cortexstore/internal/storage"
)

// cacheKey identifies one cached reachable-set row.
type cacheKey struct {
	node      string
	direction model.ReachabilityDirection
}

// Cache is a bounded LRU over the persisted reachability_cache table. It
// holds full cache entries in memory up to capacity, evicting the least
// recently used key once full; eviction only drops the in-memory fast path,
// the table row stays until invalidate_node/invalidate_all removes it.
// Concurrent misses for the same key are deduplicated via singleflight so a
// traversal burst doesn't recompute the same reachable set twice.
type Cache struct {
	mgr      *storage.Manager
	capacity int

	mu      sync.Mutex
	entries map[cacheKey]*list.Element
	order   *list.List // front = most recently used

	group singleflight.Group
}

type cacheEntry struct {
	key   cacheKey
	value model.ReachabilityCache
}

// NewCache builds a Cache with the given capacity (entries below 1 fall
// back to 1, a cache that still functions but evicts eagerly).
func NewCache(mgr *storage.Manager, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		mgr:      mgr,
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached reachable set for (node, direction), computing and
// storing it via compute on a miss. Concurrent misses for the same key
// share one compute call.
func (c *Cache) Get(ctx context.Context, node string, direction model.ReachabilityDirection, compute func(ctx context.Context) (model.ReachabilityCache, error)) (model.ReachabilityCache, error) {
	key := cacheKey{node: node, direction: direction}

	if v, ok := c.peek(key); ok {
		metrics.ReachabilityCacheHits.Inc()
		return v, nil
	}

	var stored model.ReachabilityCache
	var storedFound bool
	err := c.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		v, found, err := query.GetReachabilityCache(ctx, db, node, direction)
		if err != nil {
			return err
		}
		stored, storedFound = v, found
		return nil
	})
	if err != nil {
		return model.ReachabilityCache{}, err
	}
	if storedFound {
		metrics.ReachabilityCacheHits.Inc()
		c.put(key, stored)
		return stored, nil
	}

	metrics.ReachabilityCacheMisses.Inc()
	groupKey := node + "|" + string(direction)
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		computed, err := compute(ctx)
		if err != nil {
			return model.ReachabilityCache{}, err
		}
		if err := c.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
			return query.UpsertReachabilityCache(ctx, db, computed)
		}); err != nil {
			return model.ReachabilityCache{}, err
		}
		c.put(key, computed)
		return computed, nil
	})
	if err != nil {
		return model.ReachabilityCache{}, err
	}
	return v.(model.ReachabilityCache), nil
}

func (c *Cache) peek(key cacheKey) (model.ReachabilityCache, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return model.ReachabilityCache{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *Cache) put(key cacheKey, v model.ReachabilityCache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = v
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, value: v})
	c.entries[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// InvalidateNode drops both directions' cached rows for node, in memory and
// in storage.
func (c *Cache) InvalidateNode(ctx context.Context, node string) error {
	c.mu.Lock()
	for _, dir := range []model.ReachabilityDirection{model.DirectionForward, model.DirectionInverse} {
		key := cacheKey{node: node, direction: dir}
		if el, ok := c.entries[key]; ok {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	return c.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		return query.DeleteReachabilityCache(ctx, db, node)
	})
}

// InvalidateAll clears every cached entry, in memory and in storage.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[cacheKey]*list.Element)
	c.order = list.New()
	c.mu.Unlock()

	return c.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		return query.DeleteAllReachabilityCache(ctx, db)
	})
}
