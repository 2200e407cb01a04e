package storage

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// statsEntry is a cached stats snapshot with its expiry.
type statsEntry struct {
	stats     *IndexStats
	expiresAt time.Time
}

// StatsCache caches index statistics with a caller-injected TTL. It is an
// explicitly constructed object passed to whoever serves status queries;
// there is no package-level instance.
type StatsCache struct {
	ttl   time.Duration
	mu    sync.Mutex
	cache *lru.Cache[string, *statsEntry]
	now   func() time.Time
}

// NewStatsCache creates a stats cache with the given TTL.
func NewStatsCache(ttl time.Duration) *StatsCache {
	// One entry per database path; a small cache is plenty.
	cache, _ := lru.New[string, *statsEntry](8)
	return &StatsCache{
		ttl:   ttl,
		cache: cache,
		now:   time.Now,
	}
}

// Get returns cached statistics for the key, refreshing from the store
// when the entry is missing or expired.
func (c *StatsCache) Get(ctx context.Context, key string, store Store) (*IndexStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.cache.Get(key); ok && c.now().Before(entry.expiresAt) {
		snapshot := *entry.stats
		return &snapshot, nil
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, &statsEntry{
		stats:     stats,
		expiresAt: c.now().Add(c.ttl),
	})

	snapshot := *stats
	return &snapshot, nil
}

// Invalidate drops the cached entry for a key, forcing the next Get to
// refresh. Called after indexing runs and cleanup operations.
func (c *StatsCache) Invalidate(key string) {
	c.mu.Lock()
	c.cache.Remove(key)
	c.mu.Unlock()
}
