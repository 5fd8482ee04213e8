package postgresengine

import (
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// Option defines a functional option for configuring LoanStore.
type Option func(*LoanStore) error

// WithTableNames overrides the default table names (items, loans, members).
func WithTableNames(items, loans, members string) Option {
	return func(s *LoanStore) error {
		if items == "" || loans == "" || members == "" {
			return ErrEmptyTableNameSupplied
		}

		s.itemsTable = items
		s.loansTable = loans
		s.membersTable = members

		return nil
	}
}

// WithLogger sets the logger for the LoanStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: transaction outcomes with durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that abort an operation.
func WithLogger(logger loanstore.Logger) Option {
	return func(s *LoanStore) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger. It is preferred over the plain logger when both are set.
func WithContextualLogger(logger loanstore.ContextualLogger) Option {
	return func(s *LoanStore) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the LoanStore.
// It receives statement and transaction durations, database errors and transient conflicts.
func WithMetrics(collector loanstore.MetricsCollector) Option {
	return func(s *LoanStore) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the LoanStore. One span is opened per transaction and per history read.
func WithTracing(collector loanstore.TracingCollector) Option {
	return func(s *LoanStore) error {
		s.tracingCollector = collector
		return nil
	}
}
