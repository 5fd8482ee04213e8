package coordination

import (
	"context"
	"errors"
	"time"
)

var ErrSharedCacheFailed = errors.New("shared cache operation failed")

// SharedCache is a string key-value store with per-entry expiry shared by all processes.
// Expired entries must be invisible to every method.
type SharedCache interface {
	// SetIfAbsent stores value under key only if no live entry exists. It reports whether it stored.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Set stores value under key, replacing any existing entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Get(ctx context.Context, key string) (string, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error

	// DeleteIfEquals atomically deletes the live entry under key if its value equals value.
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}
