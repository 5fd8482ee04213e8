package shell

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

// RequestGuard makes an operation replayable by request id.
//
// A request id moves from unseen to in progress (its request lock is held) and then either to completed,
// with the result cached for the TTL, or back to unseen when it failed. Failures are never cached, so a
// corrected retry executes again.
type RequestGuard struct {
	locker           *Locker
	results          ResultCache
	operation        core.Operation
	ttl              time.Duration
	logger           Logger
	contextualLogger ContextualLogger
}

// RequestGuardOption configures a RequestGuard.
type RequestGuardOption func(*RequestGuard)

// WithRequestGuardLogger sets the logger for cache write failures.
func WithRequestGuardLogger(logger Logger) RequestGuardOption {
	return func(g *RequestGuard) {
		g.logger = logger
	}
}

// WithRequestGuardContextualLogger sets the contextual logger for cache write failures.
func WithRequestGuardContextualLogger(logger ContextualLogger) RequestGuardOption {
	return func(g *RequestGuard) {
		g.contextualLogger = logger
	}
}

// NewRequestGuard creates a guard for one operation. Results are cached for ttl.
func NewRequestGuard(
	locker *Locker,
	results ResultCache,
	operation core.Operation,
	ttl time.Duration,
	options ...RequestGuardOption,
) *RequestGuard {
	g := &RequestGuard{
		locker:    locker,
		results:   results,
		operation: operation,
		ttl:       ttl,
	}

	for _, option := range options {
		option(g)
	}

	return g
}

// Run returns the cached result for requestID if there is one, otherwise it executes under the request lock.
// An empty requestID means the call is not deduplicated.
func (g *RequestGuard) Run(
	ctx context.Context,
	requestID string,
	execute func(ctx context.Context) (core.LoanResult, error),
) (core.LoanResult, error) {
	if requestID == "" {
		return execute(ctx)
	}

	cached, found, err := g.results.Get(ctx, requestID)
	if err != nil {
		return core.LoanResult{}, core.Internal(err)
	}

	if found {
		return cached.AsReplay(), nil
	}

	var result core.LoanResult

	err = g.locker.WithLock(ctx, core.RequestLockKey(g.operation, requestID), func(ctx context.Context) error {
		// the holder we may have waited for could have completed this request
		cached, found, err := g.results.Get(ctx, requestID)
		if err != nil {
			return core.Internal(err)
		}

		if found {
			result = cached.AsReplay()
			return nil
		}

		result, err = execute(ctx)
		if err != nil {
			return err
		}

		if putErr := g.results.Put(ctx, requestID, result, g.ttl); putErr != nil {
			logWarn(ctx, g.logger, g.contextualLogger, LogMsgResultCacheFail,
				LogAttrRequestID, requestID,
				LogAttrError, putErr.Error(),
			)
		}

		return nil
	})
	if errors.Is(err, core.ErrLockTimeout) {
		// a duplicate that lost the race for the request lock after the original completed
		if cached, found, getErr := g.results.Get(ctx, requestID); getErr == nil && found {
			return cached.AsReplay(), nil
		}
	}

	if err != nil {
		return core.LoanResult{}, err
	}

	return result, nil
}
