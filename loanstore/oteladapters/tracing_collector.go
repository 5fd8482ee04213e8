package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

const spanAttrOutcome = "loans.outcome"

// TracingCollector implements loanstore.TracingCollector on an OpenTelemetry tracer.
type TracingCollector struct {
	tracer trace.Tracer
}

func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span as a child of whatever span ctx already carries.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, loanstore.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan adds the final attributes, maps status to a span status and ends the span.
// Span contexts from other collectors are ignored.
func (t *TracingCollector) FinishSpan(spanCtx loanstore.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(toAttributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

// OTelSpanContext wraps an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus records status as the outcome attribute and sets the span status.
//
// Replays and business rejections are regular outcomes of a loan request, so
// they leave the span Ok. A rolled back store transaction stays Unset because
// the handler span above it knows whether that was a rejection or a failure.
func (s *OTelSpanContext) SetStatus(status string) {
	s.span.SetAttributes(attribute.String(spanAttrOutcome, status))

	switch status {
	case "success", "replayed", "rejected":
		s.span.SetStatus(codes.Ok, "")
	case "error", "canceled", "timeout", "lock_timeout", "transient_conflict":
		s.span.SetStatus(codes.Error, status)
	default:
		s.span.SetStatus(codes.Unset, "")
	}
}

func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// Span exposes the wrapped span, e.g. to record events on it.
func (s *OTelSpanContext) Span() trace.Span {
	return s.span
}

var (
	_ loanstore.TracingCollector = (*TracingCollector)(nil)
	_ loanstore.SpanContext      = (*OTelSpanContext)(nil)
)
