package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	// CommandHandlerDurationMetric tracks command handler execution duration.
	CommandHandlerDurationMetric = "commandhandler_handle_duration_seconds"

	// CommandHandlerCallsMetric tracks total command handler calls.
	CommandHandlerCallsMetric = "commandhandler_handle_calls_total"

	// CommandHandlerReplayedMetric tracks results served from the idempotency cache.
	CommandHandlerReplayedMetric = "commandhandler_replayed_operations_total"

	// CommandHandlerItemsMetric tracks how many loans each successful command created or returned.
	CommandHandlerItemsMetric = "commandhandler_items_processed"

	// CommandHandlerBusinessFailureMetric tracks rejected commands by failure kind.
	CommandHandlerBusinessFailureMetric = "commandhandler_business_failures_total"

	// CommandHandlerLockTimeoutMetric tracks commands that could not get the member or request lock.
	CommandHandlerLockTimeoutMetric = "commandhandler_lock_timeouts_total"

	// CommandHandlerRetriesMetric tracks retry attempts in command handlers.
	//
	// Labels:
	//   - command_type: Type of command being retried (e.g., "BorrowBooks")
	//   - attempt_number: Which retry attempt (1, 2, 3, 4)
	//   - error_type: Category of error causing retry (e.g., "transient_conflict")
	CommandHandlerRetriesMetric = "commandhandler_retries_total"

	// CommandHandlerRetryDelayMetric tracks backoff delays in command handlers.
	CommandHandlerRetryDelayMetric = "commandhandler_retry_delay_seconds"

	// CommandHandlerMaxRetriesReachedMetric tracks when max retries are exhausted.
	CommandHandlerMaxRetriesReachedMetric = "commandhandler_max_retries_reached_total"

	// QueryHandlerDurationMetric tracks query handler execution duration.
	QueryHandlerDurationMetric = "queryhandler_handle_duration_seconds"

	// QueryHandlerCallsMetric tracks total query handler calls.
	QueryHandlerCallsMetric = "queryhandler_handle_calls_total"

	StatusSuccess           = "success"
	StatusError             = "error"
	StatusReplayed          = "replayed"
	StatusCanceled          = "canceled"
	StatusTimeout           = "timeout"
	StatusLockTimeout       = "lock_timeout"
	StatusRejected          = "rejected"
	StatusTransientConflict = "transient_conflict"

	LogMsgCommandStarted   = "command handler started"
	LogMsgCommandCompleted = "command handler completed"
	LogMsgCommandRejected  = "command handler rejected the command"
	LogMsgCommandFailed    = "command handler failed"
	LogMsgQueryStarted     = "query handler started"
	LogMsgQueryCompleted   = "query handler completed"
	LogMsgQueryFailed      = "query handler failed"
	LogMsgLockReleaseFail  = "releasing lock failed, it will expire with its lease"
	LogMsgResultCacheFail  = "caching the request result failed"

	LogAttrCommandType     = "command_type"
	LogAttrQueryType       = "query_type"
	LogAttrStatus          = "status"
	LogAttrDurationMS      = "duration_ms"
	LogAttrBusinessOutcome = "business_outcome"
	LogAttrItemCount       = "item_count"
	LogAttrError           = "error"
	LogAttrFailureKind     = "failure_kind"
	LogAttrReason          = "reason"
	LogAttrLockKey         = "lock_key"
	LogAttrRequestID       = "request_id"

	SpanNameCommandHandle = "commandhandler.handle"
	SpanNameQueryHandle   = "queryhandler.handle"
)

// Interface aliases so handlers and wrappers need not import loanstore for observability.

type MetricsCollector = loanstore.MetricsCollector

type ContextualMetricsCollector = loanstore.ContextualMetricsCollector

type TracingCollector = loanstore.TracingCollector

type SpanContext = loanstore.SpanContext

type ContextualLogger = loanstore.ContextualLogger

type Logger = loanstore.Logger

// BuildCommandLabels creates standard metric labels for command handler operations.
func BuildCommandLabels(commandType, status string) map[string]string {
	return map[string]string{
		LogAttrCommandType: commandType,
		LogAttrStatus:      status,
	}
}

// BuildQueryLabels creates standard metric labels for query handler operations.
func BuildQueryLabels(queryType, status string) map[string]string {
	return map[string]string{
		LogAttrQueryType: queryType,
		LogAttrStatus:    status,
	}
}

// BuildRetryLabels creates standard metric labels for retry operations.
func BuildRetryLabels(commandType string, attemptNumber int, errorType string) map[string]string {
	return map[string]string{
		LogAttrCommandType:      commandType,
		retryLabelAttemptNumber: strconv.Itoa(attemptNumber),
		retryLabelErrorType:     errorType,
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds.
func ToMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func recordDuration(ctx context.Context, collector MetricsCollector, metric string, d time.Duration, labels map[string]string) {
	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, d, labels)
		return
	}

	collector.RecordDuration(metric, d, labels)
}

func incrementCounter(ctx context.Context, collector MetricsCollector, metric string, labels map[string]string) {
	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	collector.IncrementCounter(metric, labels)
}

func recordValue(ctx context.Context, collector MetricsCollector, metric string, value float64, labels map[string]string) {
	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	collector.RecordValue(metric, value, labels)
}

// ClassifyCommandError maps a command error to the status used in metrics, spans and logs.
func ClassifyCommandError(err error) string {
	switch {
	case IsCancellationError(err):
		return StatusCanceled
	case IsTimeoutError(err):
		return StatusTimeout
	case IsLockTimeoutError(err):
		return StatusLockTimeout
	case IsBusinessFailure(err):
		return StatusRejected
	case IsTransientConflictError(err):
		return StatusTransientConflict
	default:
		return StatusError
	}
}

// RecordCommandMetrics records duration and call count of one command, plus the outcome specific counters.
func RecordCommandMetrics(
	ctx context.Context,
	collector MetricsCollector,
	commandType string,
	status string,
	duration time.Duration,
) {
	if collector == nil {
		return
	}

	labels := BuildCommandLabels(commandType, status)
	recordDuration(ctx, collector, CommandHandlerDurationMetric, duration, labels)
	incrementCounter(ctx, collector, CommandHandlerCallsMetric, labels)

	switch status {
	case StatusReplayed:
		incrementCounter(ctx, collector, CommandHandlerReplayedMetric, BuildCommandLabels(commandType, status))
	case StatusLockTimeout:
		incrementCounter(ctx, collector, CommandHandlerLockTimeoutMetric, BuildCommandLabels(commandType, status))
	}
}

// RecordBusinessFailure counts a rejected command by failure kind and reason.
func RecordBusinessFailure(ctx context.Context, collector MetricsCollector, commandType string, failure *core.Failure) {
	if collector == nil || failure == nil {
		return
	}

	incrementCounter(ctx, collector, CommandHandlerBusinessFailureMetric, map[string]string{
		LogAttrCommandType: commandType,
		LogAttrFailureKind: failure.Kind.Error(),
		LogAttrReason:      failure.Reason,
	})
}

// RecordItemsProcessed records how many loans a successful command touched.
func RecordItemsProcessed(ctx context.Context, collector MetricsCollector, commandType string, itemCount int) {
	if collector == nil {
		return
	}

	recordValue(ctx, collector, CommandHandlerItemsMetric, float64(itemCount), map[string]string{LogAttrCommandType: commandType})
}

// RecordQueryMetrics records duration and call count of one query.
func RecordQueryMetrics(
	ctx context.Context,
	collector MetricsCollector,
	queryType string,
	status string,
	duration time.Duration,
) {
	if collector == nil {
		return
	}

	labels := BuildQueryLabels(queryType, status)
	recordDuration(ctx, collector, QueryHandlerDurationMetric, duration, labels)
	incrementCounter(ctx, collector, QueryHandlerCallsMetric, labels)
}

// StartCommandSpan starts a span for a command, or returns ctx and nil if tracing is disabled.
func StartCommandSpan(ctx context.Context, tracingCollector TracingCollector, commandType string) (context.Context, SpanContext) {
	if tracingCollector == nil {
		return ctx, nil
	}

	return tracingCollector.StartSpan(ctx, SpanNameCommandHandle, map[string]string{LogAttrCommandType: commandType})
}

// StartQuerySpan starts a span for a query, or returns ctx and nil if tracing is disabled.
func StartQuerySpan(ctx context.Context, tracingCollector TracingCollector, queryType string) (context.Context, SpanContext) {
	if tracingCollector == nil {
		return ctx, nil
	}

	return tracingCollector.StartSpan(ctx, SpanNameQueryHandle, map[string]string{LogAttrQueryType: queryType})
}

// FinishSpan completes a command or query span with the outcome.
func FinishSpan(
	tracingCollector TracingCollector,
	span SpanContext,
	status string,
	duration time.Duration,
	err error,
) {
	if tracingCollector == nil || span == nil {
		return
	}

	attrs := map[string]string{
		LogAttrStatus:     status,
		LogAttrDurationMS: formatDurationMS(duration),
	}

	if err != nil {
		attrs[LogAttrError] = err.Error()
	}

	tracingCollector.FinishSpan(span, status, attrs)
}

// LogCommandStart logs the beginning of command processing.
func LogCommandStart(ctx context.Context, logger Logger, contextualLogger ContextualLogger, commandType string) {
	logInfo(ctx, logger, contextualLogger, LogMsgCommandStarted, LogAttrCommandType, commandType)
}

// LogCommandSuccess logs successful command completion.
func LogCommandSuccess(
	ctx context.Context,
	logger Logger,
	contextualLogger ContextualLogger,
	commandType string,
	businessOutcome string,
	itemCount int,
	duration time.Duration,
) {
	logInfo(ctx, logger, contextualLogger, LogMsgCommandCompleted,
		LogAttrCommandType, commandType,
		LogAttrBusinessOutcome, businessOutcome,
		LogAttrItemCount, itemCount,
		LogAttrDurationMS, ToMilliseconds(duration),
	)
}

// LogCommandRejected logs a business rule violation. It is not an error of the service.
func LogCommandRejected(ctx context.Context, logger Logger, contextualLogger ContextualLogger, commandType string, failure *core.Failure) {
	logInfo(ctx, logger, contextualLogger, LogMsgCommandRejected,
		LogAttrCommandType, commandType,
		LogAttrFailureKind, failure.Kind.Error(),
		LogAttrReason, failure.Reason,
	)
}

// LogCommandError logs command processing errors.
func LogCommandError(ctx context.Context, logger Logger, contextualLogger ContextualLogger, commandType string, err error) {
	logError(ctx, logger, contextualLogger, LogMsgCommandFailed, LogAttrCommandType, commandType, LogAttrError, err.Error())
}

// LogQueryStart logs the beginning of query processing.
func LogQueryStart(ctx context.Context, logger Logger, contextualLogger ContextualLogger, queryType string) {
	logInfo(ctx, logger, contextualLogger, LogMsgQueryStarted, LogAttrQueryType, queryType)
}

// LogQuerySuccess logs successful query completion.
func LogQuerySuccess(ctx context.Context, logger Logger, contextualLogger ContextualLogger, queryType string, duration time.Duration) {
	logInfo(ctx, logger, contextualLogger, LogMsgQueryCompleted,
		LogAttrQueryType, queryType,
		LogAttrDurationMS, ToMilliseconds(duration),
	)
}

// LogQueryError logs query processing errors.
func LogQueryError(ctx context.Context, logger Logger, contextualLogger ContextualLogger, queryType string, err error) {
	logError(ctx, logger, contextualLogger, LogMsgQueryFailed, LogAttrQueryType, queryType, LogAttrError, err.Error())
}

func logInfo(ctx context.Context, logger Logger, contextualLogger ContextualLogger, msg string, args ...any) {
	if contextualLogger != nil {
		contextualLogger.InfoContext(ctx, msg, args...)
	} else if logger != nil {
		logger.Info(msg, args...)
	}
}

func logWarn(ctx context.Context, logger Logger, contextualLogger ContextualLogger, msg string, args ...any) {
	if contextualLogger != nil {
		contextualLogger.WarnContext(ctx, msg, args...)
	} else if logger != nil {
		logger.Warn(msg, args...)
	}
}

func logError(ctx context.Context, logger Logger, contextualLogger ContextualLogger, msg string, args ...any) {
	if contextualLogger != nil {
		contextualLogger.ErrorContext(ctx, msg, args...)
	} else if logger != nil {
		logger.Error(msg, args...)
	}
}

func formatDurationMS(duration time.Duration) string {
	return fmt.Sprintf("%.2f", ToMilliseconds(duration))
}

// IsCancellationError checks if an error is due to context cancellation.
func IsCancellationError(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeoutError checks if an error is due to context deadline exceeded.
func IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsLockTimeoutError checks if a member or request lock could not be acquired in time.
func IsLockTimeoutError(err error) bool {
	return errors.Is(err, core.ErrLockTimeout)
}

// IsTransientConflictError checks if the database aborted the transaction for a lock or serialization conflict.
func IsTransientConflictError(err error) bool {
	return errors.Is(err, loanstore.ErrTransientConflict)
}

// IsBusinessFailure checks if err is a business rule violation other than a lock timeout.
func IsBusinessFailure(err error) bool {
	failure, ok := core.AsFailure(err)
	return ok && !errors.Is(failure, core.ErrLockTimeout)
}
