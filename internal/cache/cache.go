// Package cache provides bounded memoization for expensive vendor calls.
//
// Embedding vectors and web-search results are memoized by exact query
// string for the process lifetime. Capacity is fixed; the least recently
// used entry is evicted on overflow. Concurrent misses for the same key may
// each perform the underlying call; there is no in-flight deduplication.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded LRU memoization cache keyed by string.
type Cache[V any] struct {
	name string
	lru  *lru.Cache[string, V]
}

// New creates a cache with the given capacity.
//
// The name labels the cache in metrics (e.g. "embedding", "web_search").
func New[V any](name string, capacity int) (*Cache[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	inner, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}
	return &Cache[V]{name: name, lru: inner}, nil
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		hitsTotal.WithLabelValues(c.name).Inc()
	} else {
		missesTotal.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

// Add stores a value for key, evicting the oldest entry when full.
func (c *Cache[V]) Add(key string, value V) {
	c.lru.Add(key, value)
}

// Do returns the cached value for key, computing and storing it on a miss.
//
// When fn returns an error the result is not cached and the error is
// returned to the caller.
func (c *Cache[V]) Do(key string, fn func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		return v, err
	}
	c.lru.Add(key, v)
	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge removes all entries. Useful in tests.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}
