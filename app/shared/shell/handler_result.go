package shell

import "time"

// HandlerResult carries execution metadata of a command handler run, next to its business result.
type HandlerResult struct {
	// Replayed is set when the result was served from the idempotency cache.
	Replayed bool

	// RetryAttempts is the total number of transaction attempts (1 without retries).
	RetryAttempts int

	// TotalRetryDelay is the time spent in backoff sleeps only.
	TotalRetryDelay time.Duration

	// LastErrorType is "none" on success, otherwise the type of the last error seen by the retry loop.
	LastErrorType string

	// RetriesExhausted is set when every attempt failed with a retryable error.
	RetriesExhausted bool

	// ItemCount is the number of loans created or returned.
	ItemCount int
}

// NewSuccessResult creates a HandlerResult for a freshly executed operation.
func NewSuccessResult(retryMetrics RetryMetrics, itemCount int) HandlerResult {
	return HandlerResult{
		RetryAttempts:    retryMetrics.Attempts,
		TotalRetryDelay:  retryMetrics.TotalDelay,
		LastErrorType:    retryMetrics.LastErrorType,
		RetriesExhausted: retryMetrics.RetriesExhausted,
		ItemCount:        itemCount,
	}
}

// NewReplayedResult creates a HandlerResult for a result served from the idempotency cache.
func NewReplayedResult() HandlerResult {
	return HandlerResult{
		Replayed:      true,
		LastErrorType: errorTypeNone,
	}
}

// NewErrorResult creates a HandlerResult for a failed operation, keeping the retry metadata.
func NewErrorResult(retryMetrics RetryMetrics) HandlerResult {
	return HandlerResult{
		RetryAttempts:    retryMetrics.Attempts,
		TotalRetryDelay:  retryMetrics.TotalDelay,
		LastErrorType:    retryMetrics.LastErrorType,
		RetriesExhausted: retryMetrics.RetriesExhausted,
	}
}
