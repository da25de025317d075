// Package cache provides a small TTL cache for remote call results
// (translations, query embeddings, store scans).
//
// Entries carry their insertion timestamp; expiry is checked on read and a
// stale hit is evicted immediately. When a Set pushes the cache past its
// capacity, the single oldest entry is removed via a linear scan. Capacity
// is on the order of hundreds, so the scan is cheaper than maintaining an
// ordering structure.
//
// The cache is best-effort process state: correctness must never depend on
// a hit.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	storedAt time.Time
	value    V
}

// Cache is a mutex-guarded key/value store with per-entry timestamps.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]

	now func() time.Time // test hook
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the value stored under key if it is younger than ttl.
// A stale entry is removed on read. Empty keys always miss.
func (c *Cache[V]) Get(key string, ttl time.Duration) (V, bool) {
	var zero V
	k := strings.TrimSpace(key)
	if k == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return zero, false
	}
	if ttl > 0 && c.now().Sub(e.storedAt) > ttl {
		delete(c.entries, k)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the current timestamp. If the cache then
// exceeds maxEntries, the entry with the oldest timestamp is evicted.
// Empty keys are ignored.
func (c *Cache[V]) Set(key string, value V, maxEntries int) {
	k := strings.TrimSpace(key)
	if k == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[k] = entry[V]{storedAt: c.now(), value: value}

	if maxEntries > 0 && len(c.entries) > maxEntries {
		c.evictOldest()
	}
}

// Size returns the number of live entries, expired or not.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// evictOldest removes the entry with the oldest insertion timestamp.
// Must be called with the lock held.
func (c *Cache[V]) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			first = false
			oldestKey = k
			oldestAt = e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
