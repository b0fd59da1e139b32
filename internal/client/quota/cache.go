package quota

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// statusCache is a short-TTL memoization layer shared by the provider
// variants. The TTL is a throttle against redundant round trips, not a
// correctness mechanism; permission checks always go through the
// authoritative path. Concurrent fetches for the same key are collapsed
// into one via singleflight.
type statusCache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry[T]
	group   singleflight.Group
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func newStatusCache[T any](ttl time.Duration) *statusCache[T] {
	return &statusCache[T]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry[T]),
	}
}

// get returns the cached value for key, or runs fetch and caches the
// result. Fetch errors are not cached.
func (c *statusCache[T]) get(key string, fetch func() (T, error)) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := fetch()
		if err != nil {
			return value, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// invalidate drops every entry. Called right after a quota-consuming
// action so the next read is fresh.
func (c *statusCache[T]) invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry[T])
	c.mu.Unlock()
}
