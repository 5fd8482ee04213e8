package loanstore

import "context"

// ConsistencyLevel tells an engine which database a read may be served from.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. Everything inside RunInTx runs this way regardless of the context.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows a read replica. Loan history and overdue reports use it.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key under which the preferred level is stored.
const ConsistencyLevelKey contextKey = "loanstore.consistency_level"

// WithStrongConsistency returns a context that pins reads to the primary database.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that lets reads outside a transaction use a replica.
//
//	ctx = loanstore.WithEventualConsistency(ctx)
//	loans, err := store.LoansByMember(ctx, memberID, loanstore.ActiveLoan, time.Now())
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel returns the level stored in ctx, StrongConsistency if none is set.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
