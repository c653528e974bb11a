package cache

import (
	"sort"
	"sync"
	"time"
)

// Common lifetimes used by the service.
const (
	DefaultTTL         = time.Hour
	DefaultCheckPeriod = 10 * time.Minute
	SessionTokenTTL    = 28 * time.Hour
)

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

// -----------------------------------------------------------------------------

// TTLCache is an in-memory key-value store with per-entry expiry. Expired
// entries are dropped on access and, when a check period is set, by a
// background sweep.
type TTLCache struct {
	mu         sync.RWMutex
	items      map[string]cacheItem
	defaultTTL time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// -----------------------------------------------------------------------------

// NewTTLCache creates a cache. A checkPeriod of zero disables the sweeper.
func NewTTLCache(defaultTTL, checkPeriod time.Duration, opts ...Option) *TTLCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	c := &TTLCache{
		items:      make(map[string]cacheItem),
		defaultTTL: defaultTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if checkPeriod > 0 {
		go c.sweep(checkPeriod)
	}
	return c
}

// -----------------------------------------------------------------------------

// Set stores value under key. The optional ttl overrides the default.
func (c *TTLCache) Set(key string, value interface{}, ttl ...time.Duration) {
	d := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}

	c.mu.Lock()
	c.items[key] = cacheItem{value: value, expiresAt: c.now().Add(d)}
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get returns the value only while it has not expired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		// re-check, a concurrent Set may have replaced it
		if cur, ok := c.items[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return item.value, true
}

// -----------------------------------------------------------------------------

// Delete removes key and reports whether a live entry existed.
func (c *TTLCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return false
	}
	delete(c.items, key)
	return c.now().Before(item.expiresAt)
}

// -----------------------------------------------------------------------------

// Keys lists live keys in sorted order.
func (c *TTLCache) Keys() []string {
	now := c.now()

	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for k, item := range c.items {
		if now.Before(item.expiresAt) {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// -----------------------------------------------------------------------------

// Flush drops every entry.
func (c *TTLCache) Flush() {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Close stops the sweeper. The cache stays usable.
func (c *TTLCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// -----------------------------------------------------------------------------

// Purge removes every expired entry and returns how many were dropped.
func (c *TTLCache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// -----------------------------------------------------------------------------

func (c *TTLCache) sweep(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Purge()
		case <-c.stop:
			return
		}
	}
}
