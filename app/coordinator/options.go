package coordinator

import (
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/shell"
)

// Option configures a LoanCoordinator.
type Option func(*LoanCoordinator) error

// WithLogger sets the logger for handlers and the lock discipline.
func WithLogger(logger shell.Logger) Option {
	return func(c *LoanCoordinator) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets a logger that receives the request context, e.g. for trace correlation.
func WithContextualLogger(logger shell.ContextualLogger) Option {
	return func(c *LoanCoordinator) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(c *LoanCoordinator) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector.
func WithTracing(collector shell.TracingCollector) Option {
	return func(c *LoanCoordinator) error {
		c.tracingCollector = collector
		return nil
	}
}

// WithClock replaces time.Now as the source of borrow and return dates.
func WithClock(now func() time.Time) Option {
	return func(c *LoanCoordinator) error {
		c.now = now
		return nil
	}
}

// WithRetryOptions overrides the retry policy of both command handlers.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(c *LoanCoordinator) error {
		c.retryOptions = opts
		return nil
	}
}
