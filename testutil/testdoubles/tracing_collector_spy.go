package testdoubles

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// SpySpanContext records status and attributes set on a span.
type SpySpanContext struct {
	name       string
	status     string
	attributes map[string]string
	finished   bool
	mu         sync.Mutex
}

func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[key] = value
}

// TracingCollectorSpy captures started and finished spans.
type TracingCollectorSpy struct {
	spans []*SpySpanContext
	mu    sync.Mutex
}

// SpySpanRecord is a snapshot of one captured span.
type SpySpanRecord struct {
	Name       string
	Status     string
	Attributes map[string]string
	Finished   bool
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, loanstore.SpanContext) {
	span := &SpySpanContext{name: name, attributes: maps.Clone(attrs)}
	if span.attributes == nil {
		span.attributes = make(map[string]string)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, span)

	return ctx, span
}

func (s *TracingCollectorSpy) FinishSpan(spanCtx loanstore.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	span.mu.Lock()
	defer span.mu.Unlock()

	span.status = status
	span.finished = true
	for k, v := range attrs {
		span.attributes[k] = v
	}
}

// GetSpans returns snapshots of all captured spans in start order.
func (s *TracingCollectorSpy) GetSpans() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpySpanRecord, 0, len(s.spans))
	for _, span := range s.spans {
		span.mu.Lock()
		records = append(records, SpySpanRecord{
			Name:       span.name,
			Status:     span.status,
			Attributes: maps.Clone(span.attributes),
			Finished:   span.finished,
		})
		span.mu.Unlock()
	}

	return records
}

// FindSpans returns the captured spans with the given name.
func (s *TracingCollectorSpy) FindSpans(name string) []SpySpanRecord {
	var found []SpySpanRecord
	for _, span := range s.GetSpans() {
		if span.Name == name {
			found = append(found, span)
		}
	}

	return found
}
