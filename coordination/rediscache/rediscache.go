// Package rediscache provides a coordination.SharedCache on Redis through go-redis.
package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/library-loans/coordination"
)

// compareAndDelete deletes KEYS[1] only if it holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Option defines a functional option for configuring Cache.
type Option func(*Cache)

// WithNamespace prefixes every key, which lets several environments share one Redis.
func WithNamespace(namespace string) Option {
	return func(c *Cache) {
		c.namespace = namespace
	}
}

// Cache implements coordination.SharedCache with Redis strings and key expiry.
type Cache struct {
	client    redis.UniversalClient
	namespace string
}

// New creates a cache on top of an existing client. The caller owns the client.
func New(client redis.UniversalClient, options ...Option) (*Cache, error) {
	if client == nil {
		return nil, errors.Join(coordination.ErrSharedCacheFailed, errors.New("redis client must not be nil"))
	}

	c := &Cache{client: client}
	for _, option := range options {
		option(c)
	}

	return c, nil
}

func (c *Cache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.namespace+key, value, ttl).Result()
	if err != nil {
		return false, errors.Join(coordination.ErrSharedCacheFailed, err)
	}

	return ok, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.namespace+key, value, ttl).Err(); err != nil {
		return errors.Join(coordination.ErrSharedCacheFailed, err)
	}

	return nil
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, errors.Join(coordination.ErrSharedCacheFailed, err)
	}

	return value, true, nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.namespace+key).Result()
	if err != nil {
		return false, errors.Join(coordination.ErrSharedCacheFailed, err)
	}

	return n > 0, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.namespace+key).Err(); err != nil {
		return errors.Join(coordination.ErrSharedCacheFailed, err)
	}

	return nil
}

func (c *Cache) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, c.client, []string{c.namespace + key}, value).Int64()
	if err != nil {
		return false, errors.Join(coordination.ErrSharedCacheFailed, err)
	}

	return n == 1, nil
}
