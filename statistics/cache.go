package statistics

import (
	"fmt"
	"sync"
	"time"
)

// ResultCache keeps aggregation results for a fixed TTL, keyed by
// operation name and parameters. It is populated lazily on first miss and
// never pre-warmed or invalidated by writes: a hit inside the TTL returns
// the prior result unchanged even if the store was reloaded meanwhile.
// That staleness window is the documented contract, not a bug.
type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	// now is swappable in tests
	now func() time.Time
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Key builds a cache key from the operation name and its parameters.
func Key(operation string, params ...interface{}) string {
	key := operation
	for _, p := range params {
		key += fmt.Sprintf("|%v", p)
	}
	return key
}

// Get returns the cached value when present and inside the TTL.
func (c *ResultCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Set stores a value under the key, restarting its TTL.
func (c *ResultCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
}
