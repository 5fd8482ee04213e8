package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	defaultLockKeyPrefix    = "loan:lock:"
	defaultPollInterval     = 100 * time.Millisecond
	metricLockAcquire       = "coordination_lock_acquire_total"
	metricLockWaitDuration  = "coordination_lock_wait_duration_seconds"
	metricLockRelease       = "coordination_lock_release_total"
	labelResult             = "result"
	resultAcquired          = "acquired"
	resultContended         = "contended"
	resultReleased          = "released"
	resultNotOwner          = "not_owner"
	resultFreed             = "freed"
	resultTimeout           = "timeout"
	resultCanceled          = "canceled"
	logMsgLockAcquired      = "lock acquired"
	logMsgLockContended     = "lock held by another owner"
	logMsgLockReleased      = "lock released"
	logMsgLockNotOwned      = "lock release skipped, not the owner"
	logMsgLockWaitTimedOut  = "timed out waiting for lock release"
	logAttrKey              = "key"
	logAttrWaitedMS         = "waited_ms"
	logAttrError            = "error"
)

var ErrEmptyLockKey = errors.New("lock key must not be empty")
var ErrEmptyOwnerToken = errors.New("owner token must not be empty")
var ErrInvalidPollInterval = errors.New("poll interval must be positive")

// MutexOption defines a functional option for configuring Mutex.
type MutexOption func(*Mutex) error

// WithKeyPrefix overrides the prefix prepended to every lock key.
func WithKeyPrefix(prefix string) MutexOption {
	return func(m *Mutex) error {
		m.keyPrefix = prefix
		return nil
	}
}

// WithPollInterval sets how often WaitForRelease checks the lock.
func WithPollInterval(interval time.Duration) MutexOption {
	return func(m *Mutex) error {
		if interval <= 0 {
			return ErrInvalidPollInterval
		}

		m.pollInterval = interval

		return nil
	}
}

// WithMutexLogger sets the logger. Acquire and release outcomes are logged at debug level, wait timeouts at warn.
func WithMutexLogger(logger loanstore.Logger) MutexOption {
	return func(m *Mutex) error {
		m.logger = logger
		return nil
	}
}

// WithMutexMetrics sets the metrics collector.
func WithMutexMetrics(collector loanstore.MetricsCollector) MutexOption {
	return func(m *Mutex) error {
		m.metricsCollector = collector
		return nil
	}
}

// Mutex is a distributed mutual exclusion lock keyed by string.
// It does not retry by itself; callers combine Acquire and WaitForRelease into their own policy.
type Mutex struct {
	cache            SharedCache
	keyPrefix        string
	pollInterval     time.Duration
	logger           loanstore.Logger
	metricsCollector loanstore.MetricsCollector
}

// NewMutex creates a Mutex on top of the given cache.
func NewMutex(cache SharedCache, options ...MutexOption) (*Mutex, error) {
	m := &Mutex{
		cache:        cache,
		keyPrefix:    defaultLockKeyPrefix,
		pollInterval: defaultPollInterval,
	}

	for _, option := range options {
		if err := option(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Acquire makes one atomic attempt to take the lock for ownerToken with the given lease.
// It reports false without error if another owner holds the lock.
func (m *Mutex) Acquire(ctx context.Context, key, ownerToken string, lease time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyLockKey
	}

	if ownerToken == "" {
		return false, ErrEmptyOwnerToken
	}

	acquired, err := m.cache.SetIfAbsent(ctx, m.keyPrefix+key, ownerToken, lease)
	if err != nil {
		return false, err
	}

	if acquired {
		m.count(metricLockAcquire, resultAcquired)
		m.logDebug(logMsgLockAcquired, logAttrKey, key)
	} else {
		m.count(metricLockAcquire, resultContended)
		m.logDebug(logMsgLockContended, logAttrKey, key)
	}

	return acquired, nil
}

// WaitForRelease polls until the lock is absent, maxWait elapses, or ctx ends.
// It reports true once the lock is free and false on timeout. It never acquires the lock.
func (m *Mutex) WaitForRelease(ctx context.Context, key string, maxWait time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyLockKey
	}

	start := time.Now()
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		held, err := m.Exists(ctx, key)
		if err != nil {
			return false, err
		}

		if !held {
			m.recordWait(start, resultFreed)
			return true, nil
		}

		select {
		case <-ctx.Done():
			m.recordWait(start, resultCanceled)
			return false, ctx.Err()

		case <-deadline.C:
			m.recordWait(start, resultTimeout)
			m.logWarn(logMsgLockWaitTimedOut, logAttrKey, key, logAttrWaitedMS, time.Since(start).Milliseconds())
			return false, nil

		case <-ticker.C:
		}
	}
}

// Release deletes the lock only if ownerToken still owns it. It reports whether it deleted.
func (m *Mutex) Release(ctx context.Context, key, ownerToken string) (bool, error) {
	if key == "" {
		return false, ErrEmptyLockKey
	}

	released, err := m.cache.DeleteIfEquals(ctx, m.keyPrefix+key, ownerToken)
	if err != nil {
		return false, err
	}

	if released {
		m.count(metricLockRelease, resultReleased)
		m.logDebug(logMsgLockReleased, logAttrKey, key)
	} else {
		m.count(metricLockRelease, resultNotOwner)
		m.logDebug(logMsgLockNotOwned, logAttrKey, key)
	}

	return released, nil
}

// Exists reports whether any owner currently holds the lock.
func (m *Mutex) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyLockKey
	}

	return m.cache.Exists(ctx, m.keyPrefix+key)
}

func (m *Mutex) count(metric, result string) {
	if m.metricsCollector != nil {
		m.metricsCollector.IncrementCounter(metric, map[string]string{labelResult: result})
	}
}

func (m *Mutex) recordWait(start time.Time, result string) {
	if m.metricsCollector != nil {
		m.metricsCollector.RecordDuration(metricLockWaitDuration, time.Since(start), map[string]string{labelResult: result})
	}
}

func (m *Mutex) logDebug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Mutex) logWarn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
