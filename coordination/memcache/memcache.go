// Package memcache provides an in-process coordination.SharedCache.
// It coordinates goroutines of one process only.
package memcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Option defines a functional option for configuring Cache.
type Option func(*Cache)

// WithClock replaces time.Now, which lets tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache is a map with per-entry expiry guarded by one mutex.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty cache.
func New(options ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// live returns the entry under key if it has not expired, dropping it otherwise. Callers hold c.mu.
func (c *Cache) live(key string) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}

	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return entry{}, false
	}

	return e, true
}

func (c *Cache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live(key); ok {
		return false, nil
	}

	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}

	return true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}

	return nil
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(key)

	return e.value, ok, nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

func (c *Cache) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(key)
	if !ok || e.value != value {
		return false, nil
	}

	delete(c.entries, key)

	return true, nil
}

// PurgeExpired drops every expired entry and returns how many it dropped.
func (c *Cache) PurgeExpired(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			n++
		}
	}

	return n, nil
}
