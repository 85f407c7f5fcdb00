package classifier

import (
	"sync"
	"time"
)

// Cache TTLs.
const (
	TopicCacheTTL  = 300 * time.Second
	LegacyCacheTTL = 60 * time.Second
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache is a mutex-guarded map whose entries expire after a fixed TTL.
// Concurrent writers for the same key are last-write-wins.
type TTLCache[V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry[V]
}

// NewTTLCache creates a cache using the wall clock.
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return NewTTLCacheWithClock[V](ttl, time.Now)
}

// NewTTLCacheWithClock creates a cache with an injected clock (for testing).
func NewTTLCacheWithClock[V any](ttl time.Duration, now func() time.Time) *TTLCache[V] {
	return &TTLCache[V]{
		ttl:   ttl,
		now:   now,
		items: make(map[string]entry[V]),
	}
}

// Get returns the value stored under key if it is younger than the TTL.
// Expired entries are evicted on read.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, stamped with the current time.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, storedAt: c.now()}
}

// Clear drops every entry.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V])
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
