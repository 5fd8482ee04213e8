// Package observable wraps command and query handlers with metrics, tracing
// and logging, keeping the handlers themselves free of observability code.
//
// Wrappers are applied at wiring time:
//
//	coreHandler := borrowbooks.NewCommandHandler(store, locker, guard, rules)
//
//	handler, err := observable.NewCommandWrapper[borrowbooks.Command](
//		coreHandler,
//		observable.WithCommandMetrics[borrowbooks.Command](metricsCollector),
//		observable.WithCommandTracing[borrowbooks.Command](tracingCollector),
//		observable.WithCommandContextualLogging[borrowbooks.Command](contextualLogger),
//	)
//
// Business rule violations (core.Failure) are reported as "rejected" and
// logged at info level; only infrastructure failures are logged as errors.
package observable
