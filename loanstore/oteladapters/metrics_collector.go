package oteladapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

const unitSeconds = "s"

// MetricsCollector implements loanstore.ContextualMetricsCollector on an OpenTelemetry meter.
// Instruments are created on first use and cached by metric name.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
}

func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

func (c *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	c.RecordDurationContext(context.Background(), metricName, duration, labels)
}

func (c *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	c.IncrementCounterContext(context.Background(), metricName, labels)
}

func (c *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	c.RecordValueContext(context.Background(), metricName, value, labels)
}

// RecordDurationContext records the duration in seconds. The context carries exemplars when tracing is active.
func (c *MetricsCollector) RecordDurationContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {
	histogram, err := c.histogram(metricName)
	if err != nil {
		return
	}

	histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(toAttributes(labels)...))
}

func (c *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	counter, err := c.counter(metricName)
	if err != nil {
		return
	}

	counter.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

func (c *MetricsCollector) RecordValueContext(ctx context.Context, metricName string, value float64, labels map[string]string) {
	gauge, err := c.gauge(metricName)
	if err != nil {
		return
	}

	gauge.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

func (c *MetricsCollector) histogram(name string) (metric.Float64Histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.histograms[name]; ok {
		return h, nil
	}

	h, err := c.meter.Float64Histogram(name,
		metric.WithDescription(describe(name)),
		metric.WithUnit(unitSeconds),
	)
	if err != nil {
		return nil, err
	}

	c.histograms[name] = h

	return h, nil
}

func (c *MetricsCollector) counter(name string) (metric.Int64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[name]; ok {
		return counter, nil
	}

	counter, err := c.meter.Int64Counter(name, metric.WithDescription(describe(name)))
	if err != nil {
		return nil, err
	}

	c.counters[name] = counter

	return counter, nil
}

func (c *MetricsCollector) gauge(name string) (metric.Float64Gauge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.gauges[name]; ok {
		return g, nil
	}

	g, err := c.meter.Float64Gauge(name, metric.WithDescription(describe(name)))
	if err != nil {
		return nil, err
	}

	c.gauges[name] = g

	return g, nil
}

// describe derives a readable description, e.g. "coordination lock acquire total".
func describe(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

var _ loanstore.ContextualMetricsCollector = (*MetricsCollector)(nil)
