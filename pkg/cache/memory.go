package cache

import (
	"context"
	"sync"
	"time"

	"github.com/HatiCode/attendbench/pkg/records"
)

type entry struct {
	rows       []records.Record
	insertedAt time.Time
}

// Stats counts cache lookups since construction.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// MemoryCache is an in-process Cache guarded by a single RWMutex.
//
// Expired entries are removed when a Get observes them; there is no
// background sweep. Concurrent misses on the same key may all recompute and
// Put; the last writer wins and the map stays consistent.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	stats   Stats
	enabled bool
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache. ttl <= 0 uses DefaultTTL.
func NewMemoryCache(enabled bool, ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		enabled: enabled,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the rows cached for key.
//
// This operation is safe for concurrent use.
func (c *MemoryCache) Get(ctx context.Context, key records.Key) ([]records.Record, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	k := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.stats.Misses++
		return nil, false, nil
	}

	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.entries, k)
		c.stats.Evictions++
		c.stats.Misses++
		return nil, false, nil
	}

	c.stats.Hits++
	return clone(e.rows), true, nil
}

// Put stores a copy of rows for key.
//
// This operation is safe for concurrent use.
func (c *MemoryCache) Put(ctx context.Context, key records.Key, rows []records.Record) error {
	if !c.enabled {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	e := entry{rows: clone(rows), insertedAt: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.String()] = e
	return nil
}

// Enabled reports whether the cache stores anything.
func (c *MemoryCache) Enabled() bool { return c.enabled }

// TTL returns the maximum entry age.
func (c *MemoryCache) TTL() time.Duration { return c.ttl }

// Len returns the number of entries held, including expired entries not yet
// observed by Get.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the lookup counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
