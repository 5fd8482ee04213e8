package coordination

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var ErrEmptyRequestID = errors.New("request id must not be empty")
var ErrCorruptCacheEntry = errors.New("cached result could not be decoded")

// IdempotencyCache maps request ids to the serialized result of the request that carried them.
// Entries expire after their TTL; a duplicate write replaces the previous entry.
type IdempotencyCache[R any] struct {
	cache     SharedCache
	mutex     *Mutex
	keyPrefix string
}

// NewIdempotencyCache creates a cache whose entries live under keyPrefix+requestID.
// mutex is consulted by InProgress.
func NewIdempotencyCache[R any](cache SharedCache, mutex *Mutex, keyPrefix string) *IdempotencyCache[R] {
	return &IdempotencyCache[R]{
		cache:     cache,
		mutex:     mutex,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached result for requestID and whether one exists.
func (c *IdempotencyCache[R]) Get(ctx context.Context, requestID string) (R, bool, error) {
	var result R

	if requestID == "" {
		return result, false, ErrEmptyRequestID
	}

	raw, found, err := c.cache.Get(ctx, c.keyPrefix+requestID)
	if err != nil || !found {
		return result, false, err
	}

	if err = jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &result); err != nil {
		return result, false, errors.Join(ErrCorruptCacheEntry, err)
	}

	return result, true, nil
}

// Put stores result under requestID for ttl.
func (c *IdempotencyCache[R]) Put(ctx context.Context, requestID string, result R, ttl time.Duration) error {
	if requestID == "" {
		return ErrEmptyRequestID
	}

	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(result)
	if err != nil {
		return err
	}

	return c.cache.Set(ctx, c.keyPrefix+requestID, raw, ttl)
}

// InProgress reports whether the request lock under lockKey is currently held.
func (c *IdempotencyCache[R]) InProgress(ctx context.Context, lockKey string) (bool, error) {
	return c.mutex.Exists(ctx, lockKey)
}
