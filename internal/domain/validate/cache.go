package validate

import "sync"

// Default cache configuration constants.
const defaultCacheSize = 10000

// cache is a bounded map safe for concurrent use. Eviction drops an
// arbitrary entry once the bound is reached; confirmed lookup results
// are cheap to recompute and the bound only guards memory.
type cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
	maxSize int
}

func newCache[V any](maxSize int) *cache[V] {
	return &cache[V]{
		entries: make(map[string]V),
		maxSize: maxSize,
	}
}

func (c *cache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *cache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = value
}

func (c *cache[V]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// clear drops every entry; used by tests and explicit resets.
func (c *cache[V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]V)
}
