package shell

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

const releaseTimeout = 5 * time.Second

var ErrInvalidLockPolicy = errors.New("lock lease and wait must be positive")

// LockPolicy bounds how long a lock is held at most and how long a contended caller waits.
type LockPolicy struct {
	Lease   time.Duration
	MaxWait time.Duration
}

// Validate rejects non-positive durations.
func (p LockPolicy) Validate() error {
	if p.Lease <= 0 || p.MaxWait <= 0 {
		return ErrInvalidLockPolicy
	}

	return nil
}

// Locker runs functions while holding a distributed lock.
type Locker struct {
	mutex            Mutex
	policy           LockPolicy
	logger           Logger
	contextualLogger ContextualLogger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockerLogger sets the logger for release failures.
func WithLockerLogger(logger Logger) LockerOption {
	return func(l *Locker) {
		l.logger = logger
	}
}

// WithLockerContextualLogger sets the contextual logger for release failures.
func WithLockerContextualLogger(logger ContextualLogger) LockerOption {
	return func(l *Locker) {
		l.contextualLogger = logger
	}
}

// NewLocker creates a Locker on mutex.
func NewLocker(mutex Mutex, policy LockPolicy, options ...LockerOption) (*Locker, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	l := &Locker{mutex: mutex, policy: policy}
	for _, option := range options {
		option(l)
	}

	return l, nil
}

// Policy returns the lock policy.
func (l *Locker) Policy() LockPolicy {
	return l.policy
}

// WithLock acquires key with a fresh owner token, runs fn, and releases the lock afterwards in every case.
//
// A contended lock is waited for once: Acquire, then WaitForRelease up to MaxWait, then Acquire again.
// If the second attempt loses too, WithLock fails with a core.ErrLockTimeout failure and fn is not run.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	acquired, err := l.acquire(ctx, key, token)
	if err != nil {
		return err
	}

	if !acquired {
		return core.LockTimeout(core.ReasonLockTimeout)
	}

	defer l.release(ctx, key, token)

	return fn(ctx)
}

func (l *Locker) acquire(ctx context.Context, key, token string) (bool, error) {
	acquired, err := l.mutex.Acquire(ctx, key, token, l.policy.Lease)
	if err != nil || acquired {
		return acquired, core.Internal(err)
	}

	if _, err = l.mutex.WaitForRelease(ctx, key, l.policy.MaxWait); err != nil {
		return false, core.Internal(err)
	}

	acquired, err = l.mutex.Acquire(ctx, key, token, l.policy.Lease)

	return acquired, core.Internal(err)
}

// release runs on a context detached from the caller's cancellation, so a cancelled request still frees its lock.
func (l *Locker) release(ctx context.Context, key, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if _, err := l.mutex.Release(releaseCtx, key, token); err != nil {
		logWarn(ctx, l.logger, l.contextualLogger, LogMsgLockReleaseFail, LogAttrLockKey, key, LogAttrError, err.Error())
	}
}
