package oteladapters

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// SlogBridgeLogger is a loanstore.Logger and loanstore.ContextualLogger backed by slog.
// When built with NewSlogBridgeLogger, records go through the otelslog bridge and
// carry the trace and span ids of the context they were logged with.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a logger that emits through the global OpenTelemetry LoggerProvider.
func NewSlogBridgeLogger(serviceName string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(serviceName)}
}

// NewSlogBridgeLoggerWithHandler creates a logger on a plain slog handler, e.g. for the CLI or tests.
func NewSlogBridgeLoggerWithHandler(handler slog.Handler) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: slog.New(handler)}
}

func (l *SlogBridgeLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *SlogBridgeLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogBridgeLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogBridgeLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

// OTelLogger writes records straight to an OpenTelemetry log.Logger.
// Key/value args become record attributes; a trailing key without value is dropped.
type OTelLogger struct {
	logger log.Logger
}

func NewOTelLogger(logger log.Logger) *OTelLogger {
	return &OTelLogger{logger: logger}
}

func (l *OTelLogger) Debug(msg string, args ...any) {
	l.emit(context.Background(), log.SeverityDebug, msg, args)
}

func (l *OTelLogger) Info(msg string, args ...any) {
	l.emit(context.Background(), log.SeverityInfo, msg, args)
}

func (l *OTelLogger) Warn(msg string, args ...any) {
	l.emit(context.Background(), log.SeverityWarn, msg, args)
}

func (l *OTelLogger) Error(msg string, args ...any) {
	l.emit(context.Background(), log.SeverityError, msg, args)
}

func (l *OTelLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityDebug, msg, args)
}

func (l *OTelLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityInfo, msg, args)
}

func (l *OTelLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityWarn, msg, args)
}

func (l *OTelLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityError, msg, args)
}

func (l *OTelLogger) emit(ctx context.Context, severity log.Severity, msg string, args []any) {
	var record log.Record
	record.SetSeverity(severity)
	record.SetBody(log.StringValue(msg))
	record.AddAttributes(toKeyValues(args)...)

	l.logger.Emit(ctx, record)
}

func toKeyValues(args []any) []log.KeyValue {
	kvs := make([]log.KeyValue, 0, len(args)/2)

	for i := 0; i+1 < len(args); i += 2 {
		key := fmt.Sprint(args[i])

		switch v := args[i+1].(type) {
		case string:
			kvs = append(kvs, log.String(key, v))
		case int:
			kvs = append(kvs, log.Int(key, v))
		case int64:
			kvs = append(kvs, log.Int64(key, v))
		case float64:
			kvs = append(kvs, log.Float64(key, v))
		case bool:
			kvs = append(kvs, log.Bool(key, v))
		case error:
			kvs = append(kvs, log.String(key, v.Error()))
		default:
			kvs = append(kvs, log.String(key, fmt.Sprint(v)))
		}
	}

	return kvs
}

var (
	_ loanstore.Logger           = (*SlogBridgeLogger)(nil)
	_ loanstore.ContextualLogger = (*SlogBridgeLogger)(nil)
	_ loanstore.Logger           = (*OTelLogger)(nil)
	_ loanstore.ContextualLogger = (*OTelLogger)(nil)
)
