package testdoubles

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MetricsCollectorSpy captures every MetricsCollector call for inspection in tests.
// It also implements the context-aware variant so the contextual code paths get exercised.
type MetricsCollectorSpy struct {
	durationRecords []SpyMetricRecord
	counterRecords  []SpyMetricRecord
	valueRecords    []SpyMetricRecord
	mu              sync.Mutex
}

// SpyMetricRecord represents one recorded metrics call.
type SpyMetricRecord struct {
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyMetricRecord{Metric: metric, Duration: duration, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyMetricRecord{Metric: metric, Value: 1, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyMetricRecord{Metric: metric, Value: value, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.RecordDuration(metric, duration, labels)
}

func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.RecordValue(metric, value, labels)
}

// GetDurationRecords returns a copy of the captured duration records.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyMetricRecord(nil), s.durationRecords...)
}

// GetCounterRecords returns a copy of the captured counter records.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyMetricRecord(nil), s.counterRecords...)
}

// GetValueRecords returns a copy of the captured value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyMetricRecord(nil), s.valueRecords...)
}

// CountCounter returns how many increments of metric carried all the given labels.
func (s *MetricsCollectorSpy) CountCounter(metric string, labels map[string]string) int {
	return countMatching(s.GetCounterRecords(), metric, labels)
}

// CountDuration returns how many durations of metric carried all the given labels.
func (s *MetricsCollectorSpy) CountDuration(metric string, labels map[string]string) int {
	return countMatching(s.GetDurationRecords(), metric, labels)
}

// SumValues sums the recorded values of metric carrying all the given labels.
func (s *MetricsCollectorSpy) SumValues(metric string, labels map[string]string) float64 {
	sum := 0.0
	for _, record := range s.GetValueRecords() {
		if record.Metric == metric && hasLabels(record.Labels, labels) {
			sum += record.Value
		}
	}

	return sum
}

func countMatching(records []SpyMetricRecord, metric string, labels map[string]string) int {
	n := 0
	for _, record := range records {
		if record.Metric == metric && hasLabels(record.Labels, labels) {
			n++
		}
	}

	return n
}

func hasLabels(actual, expected map[string]string) bool {
	for k, v := range expected {
		if actual[k] != v {
			return false
		}
	}

	return true
}
