// Package cache is the in-memory TTL store shared by every request in the process.
//
// Entries expire lazily: an expired entry stays in the map until the next read
// of its key removes it. There is no background sweep and no capacity bound;
// keys are a finite cross-product of metal, currency, unit and date or window.
package cache

import (
	"sync"
	"time"
)

const DefaultTTL = 24 * time.Hour

type entry struct {
	value     any
	storedAt  time.Time
	expiresAt time.Time
}

// Cache is safe for concurrent use. Concurrent writers to one key are last-write-wins.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests that need to move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key, replacing any previous entry and its expiry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := c.now()

	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// Get returns the value while now <= expiresAt. An expired entry is removed.
func (c *Cache) Get(key string) (any, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Age reports how long ago the entry was stored. It does not check expiry.
func (c *Cache) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.storedAt), true
}

// TimeUntilExpiry reports the remaining lifetime; false once nothing is left.
func (c *Cache) TimeUntilExpiry(key string) (time.Duration, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return 0, false
	}
	remaining := e.expiresAt.Sub(c.now())
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Len counts stored entries, including expired ones not yet read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
