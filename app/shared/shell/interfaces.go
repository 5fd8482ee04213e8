package shell

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

// Command is implemented by every command type. CommandType labels metrics, spans and logs.
type Command interface {
	CommandType() string
}

// CoreCommandHandler processes one command type with pure business logic.
// It returns the business result together with execution metadata for observability.
type CoreCommandHandler[C Command] interface {
	Handle(ctx context.Context, command C) (core.LoanResult, HandlerResult, error)
}

// Query is implemented by every query type. QueryType labels metrics, spans and logs.
type Query interface {
	QueryType() string
}

// QueryHandler processes one query type.
type QueryHandler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// Mutex is the subset of coordination.Mutex the lock discipline needs.
type Mutex interface {
	Acquire(ctx context.Context, key, ownerToken string, lease time.Duration) (bool, error)
	WaitForRelease(ctx context.Context, key string, maxWait time.Duration) (bool, error)
	Release(ctx context.Context, key, ownerToken string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ResultCache stores completed results by request id (coordination.IdempotencyCache[core.LoanResult]).
type ResultCache interface {
	Get(ctx context.Context, requestID string) (core.LoanResult, bool, error)
	Put(ctx context.Context, requestID string, result core.LoanResult, ttl time.Duration) error
}
