// Package oteladapters connects the loanstore observability interfaces to OpenTelemetry.
//
// The adapters serve the store engines, the coordination mutex and the
// command and query handlers alike, since all of them report through
// loanstore.Logger, loanstore.MetricsCollector and loanstore.TracingCollector:
//
//	meter := otel.Meter("library-loans")
//	tracer := otel.Tracer("library-loans")
//
//	c, err := coordinator.New(store, cache, cfg,
//		coordinator.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		coordinator.WithTracing(oteladapters.NewTracingCollector(tracer)),
//		coordinator.WithContextualLogger(oteladapters.NewSlogBridgeLogger("library-loans")),
//	)
//
// Metric names ending in "_seconds" become histograms recorded in seconds,
// counters become Int64Counters, and values become Float64Gauges.
package oteladapters
