package requestoutcome

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

// OutcomeCache is the part of coordination.IdempotencyCache[core.LoanResult] the lookup needs.
type OutcomeCache interface {
	Get(ctx context.Context, requestID string) (core.LoanResult, bool, error)
	InProgress(ctx context.Context, lockKey string) (bool, error)
}

// ReleaseWaiter waits until a request lock is free.
type ReleaseWaiter interface {
	WaitForRelease(ctx context.Context, key string, maxWait time.Duration) (bool, error)
}

// QueryHandler reads request outcomes from one cache per operation.
type QueryHandler struct {
	caches  map[core.Operation]OutcomeCache
	waiter  ReleaseWaiter
	maxWait time.Duration
}

// NewQueryHandler creates a QueryHandler. maxWait bounds how long it waits for a request that is in progress.
func NewQueryHandler(caches map[core.Operation]OutcomeCache, waiter ReleaseWaiter, maxWait time.Duration) QueryHandler {
	return QueryHandler{
		caches:  caches,
		waiter:  waiter,
		maxWait: maxWait,
	}
}

// Handle returns the cached result or a NotFoundOrExpired failure.
func (h QueryHandler) Handle(ctx context.Context, query Query) (core.LoanResult, error) {
	if query.RequestID == "" {
		return core.LoanResult{}, core.Validation(core.ReasonEmptyRequestID)
	}

	cache, ok := h.caches[query.Operation]
	if !ok {
		return core.LoanResult{}, core.Validation(core.ReasonUnknownOperation)
	}

	result, found, err := cache.Get(ctx, query.RequestID)
	if err != nil {
		return core.LoanResult{}, core.Internal(err)
	}

	if found {
		return result, nil
	}

	lockKey := core.RequestLockKey(query.Operation, query.RequestID)

	inProgress, err := cache.InProgress(ctx, lockKey)
	if err != nil {
		return core.LoanResult{}, core.Internal(err)
	}

	if !inProgress {
		return core.LoanResult{}, core.NotFoundOrExpired(core.ReasonRequestNotCompleted)
	}

	freed, err := h.waiter.WaitForRelease(ctx, lockKey, h.maxWait)
	if err != nil {
		return core.LoanResult{}, core.Internal(err)
	}

	if !freed {
		return core.LoanResult{}, core.NotFoundOrExpired(core.ReasonRequestInProgress)
	}

	result, found, err = cache.Get(ctx, query.RequestID)
	if err != nil {
		return core.LoanResult{}, core.Internal(err)
	}

	if !found {
		// the request failed, failures are not cached
		return core.LoanResult{}, core.NotFoundOrExpired(core.ReasonRequestNotCompleted)
	}

	return result, nil
}
