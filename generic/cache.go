/*
cache.go - Explicit TTL cache with an injected clock

PURPOSE:
  A keyed cache of value + stored-at timestamp. Entries expire after a TTL
  measured against the injected Clock, and can be dropped explicitly.
  There is no package-level instance: whoever needs a cache owns one and
  passes it to the components that read it.

INVALIDATION:
  - InvalidateFunc(pred): drop every entry whose key matches

SEE ALSO:
  - payroll/cache.go: Accrual cache keyed on (worker, month, policy version)
*/
package generic

import (
	"sync"
	"time"
)

// =============================================================================
// TTL CACHE
// =============================================================================

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache is safe for concurrent use. A zero or negative TTL means entries
// never expire on their own.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	clock   Clock
	ttl     time.Duration
	entries map[K]cacheEntry[V]
}

func NewTTLCache[K comparable, V any](clock Clock, ttl time.Duration) *TTLCache[K, V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTLCache[K, V]{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[K]cacheEntry[V]),
	}
}

// Get returns the cached value and whether it was present and fresh.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && c.expired(cur) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, storedAt: c.clock.Now()}
}

// InvalidateFunc drops every entry whose key satisfies match and returns
// how many were dropped.
func (c *TTLCache[K, V]) InvalidateFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTLCache[K, V]) expired(e cacheEntry[V]) bool {
	return c.ttl > 0 && !c.clock.Now().Before(e.storedAt.Add(c.ttl))
}
