// Package ttlcache provides an in-memory expiring presence store. The
// gateway uses two independent instances: one for pre-queue event-id
// deduplication and one for the post-dequeue one-reply rule.
package ttlcache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a mutex-guarded key/value store whose entries expire ttl after
// the last Set. Expiry is lazy: a key is evicted when that key is next
// looked up (or by an explicit Sweep). Cold keys that are never queried
// again linger until a sweep, which is acceptable because event ids are not
// re-queried outside the dedup path.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// New creates a cache whose entries live ttl after their last Set.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set marks key present. Setting an existing key resets its window to
// now+ttl; TTLs never accumulate.
func (c *Cache) Set(key string) {
	c.SetValue(key, true)
}

// SetValue stores value under key with a fresh TTL window.
func (c *Cache) SetValue(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Get returns the stored value and whether the key is present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if item.expiresAt.Before(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return item.value, true
}

// Has reports whether key is present and unexpired.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Sweep evicts every expired entry. It is an optional supplement to lazy
// expiry, scheduled periodically when memory from never-re-queried keys is
// a concern.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, item := range c.entries {
		if item.expiresAt.Before(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
