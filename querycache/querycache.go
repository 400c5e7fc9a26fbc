// Package querycache implements the query launcher's three-way compiled
// query cache: a scan-controller factory keyed by (query text, schema
// fingerprint, double check flag), a compiled derived query, and a sort plan, each bounded
// by entry count rather than the GC-weak-reference keying the original
// engine relied on (see DESIGN.md's Open Question decision).
package querycache

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// ScanFactoryKey identifies a cached scan-controller factory: the query
// text (projection, filter and order) it was compiled from, the blake3 schema fingerprint of the
// table it was compiled against (see codec.FingerprintSchema), and whether
// the plan carries a double-check remainder (two different plans can
// share a query string when the double-check flag differs, e.g. across
// isolation levels). Folding the schema fingerprint into the key means a
// column addition or retype naturally misses the cache instead of
// returning a pipeline compiled against the old column layout.
type ScanFactoryKey struct {
	Query       string
	Schema      string
	DoubleCheck bool
}

// Cache holds the three independently-bounded LRU slots the query
// launcher consults before invoking the planner.
type Cache struct {
	mu sync.Mutex

	scanFactories *lru.Cache
	derived       *lru.Cache
	sortPlans     *lru.Cache
}

// DefaultMaxEntries bounds each of the three slots when New is called
// with zero.
const DefaultMaxEntries = 256

// New creates a Cache with each of its three slots bounded to
// maxEntries (DefaultMaxEntries if zero or negative).
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		scanFactories: lru.New(maxEntries),
		derived:       lru.New(maxEntries),
		sortPlans:     lru.New(maxEntries),
	}
}

// ScanFactory looks up a cached scan-controller factory by key.
func (c *Cache) ScanFactory(key ScanFactoryKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanFactories.Get(key)
}

// PutScanFactory installs factory under key, evicting the least recently
// used entry if the slot is full.
func (c *Cache) PutScanFactory(key ScanFactoryKey, factory any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanFactories.Add(key, factory)
}

// DerivedQuery looks up a cached compiled derived query (a plan.Pipeline
// built from a mapped/aggregated table's pushed-down source query) by
// its source query string.
func (c *Cache) DerivedQuery(query string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.derived.Get(query)
}

func (c *Cache) PutDerivedQuery(query string, plan any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.derived.Add(query, plan)
}

// SortPlan looks up a cached sort plan by the (query, orderBy) shape
// callers choose to key it with — left as an opaque string so this
// package doesn't depend on package plan.
func (c *Cache) SortPlan(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortPlans.Get(key)
}

func (c *Cache) PutSortPlan(key string, plan any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sortPlans.Add(key, plan)
}

// Clear empties all three slots, e.g. after a schema change invalidates
// every cached plan for a table.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanFactories.Clear()
	c.derived.Clear()
	c.sortPlans.Clear()
}
