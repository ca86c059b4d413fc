package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	value   interface{}
	expires time.Time
}

// ResultCache memoizes read-query results for a bounded time-to-live. Keys
// are built from the query parameters (category, level, scope, limit) so a
// collection run can drop everything for one category without touching the
// rest.
type ResultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

func New(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Key joins the identifying parts of a query into a cache key. The first
// part is the category code, which InvalidateCategory matches on.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

func (c *ResultCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (c *ResultCache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// InvalidateCategory drops every cached result for one category code.
func (c *ResultCache) InvalidateCategory(categoryCode string) {
	prefix := categoryCode + "|"
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
