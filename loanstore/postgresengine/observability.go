package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	metricTxDuration          = "loanstore_tx_duration_seconds"
	metricStatementDuration   = "loanstore_statement_duration_seconds"
	metricReadDuration        = "loanstore_read_duration_seconds"
	metricLoansRead           = "loanstore_loans_read_total"
	metricDatabaseErrors      = "loanstore_database_errors_total"
	metricTransientConflicts  = "loanstore_transient_conflicts_total"
	spanNameTx                = "loanstore.tx"
	spanNameLoansByMember     = "loanstore.loans_by_member"
	spanNameLoansByItem       = "loanstore.loans_by_item"
	spanNameOverdueLoans      = "loanstore.overdue_loans"
	spanAttrStatus            = "status"
	spanAttrConsistency       = "consistency"
	spanAttrStatements        = "statements"
	spanAttrLoanCount         = "loan_count"
	spanAttrDurationMS        = "duration_ms"
	spanAttrErrorType         = "error_type"
	labelOperation            = "operation"
	labelStatus               = "status"
	labelErrorType            = "error_type"
	statusSuccess             = "success"
	statusError               = "error"
	statusRolledBack          = "rolled_back"
	errorTypeTransient        = "transient_conflict"
	errorTypeDatabase         = "database_error"
	errorTypeCanceled         = "canceled"
	errorTypeTimeout          = "timeout"
	operationTx               = "tx"
	operationRead             = "read"
)

// --- logging ---

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s *LoanStore) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
		return
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}
}

func (s *LoanStore) logInfo(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *LoanStore) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *LoanStore) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// --- metrics ---

func (s *LoanStore) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(loanstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metric, duration, labels)
}

func (s *LoanStore) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(loanstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

func (s *LoanStore) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(loanstore.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	s.metricsCollector.RecordValue(metric, value, labels)
}

func (s *LoanStore) recordStatement(ctx context.Context, action string, duration time.Duration, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	s.recordDuration(ctx, metricStatementDuration, duration, map[string]string{labelOperation: action, labelStatus: status})

	if err != nil {
		s.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
			labelOperation: action,
			labelErrorType: errorTypeOf(err),
		})
	}
}

func (s *LoanStore) recordTransientConflict() {
	if s.metricsCollector != nil {
		s.metricsCollector.IncrementCounter(metricTransientConflicts, map[string]string{labelOperation: operationTx})
	}
}

// --- tracing ---

func (s *LoanStore) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, loanstore.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, name, attrs)
}

func (s *LoanStore) finishSpan(span loanstore.SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	s.tracingCollector.FinishSpan(span, status, attrs)
}

// finishTx records the outcome of RunInTx. A callback error counts as a rollback, not a database error.
func (s *LoanStore) finishTx(ctx context.Context, span loanstore.SpanContext, start time.Time, statements int, err error) {
	duration := time.Since(start)

	status := statusSuccess
	switch {
	case err == nil:
		s.logInfo(ctx, logMsgTxCommitted, logAttrStatements, statements, logAttrDurationMS, durationToMilliseconds(duration))
	case errors.Is(err, loanstore.ErrTransientConflict):
		status = statusError
		s.logWarn(ctx, logMsgTransientConflict, logAttrError, err.Error(), logAttrDurationMS, durationToMilliseconds(duration))
	case errors.Is(err, ErrBeginningTxFailed), errors.Is(err, ErrCommittingTxFailed):
		status = statusError
	default:
		status = statusRolledBack
		s.logInfo(ctx, logMsgTxRolledBack, logAttrStatements, statements, logAttrError, err.Error())
	}

	s.recordDuration(ctx, metricTxDuration, duration, map[string]string{labelOperation: operationTx, labelStatus: status})

	attrs := map[string]string{
		spanAttrStatements: strconv.Itoa(statements),
		spanAttrDurationMS: fmt.Sprintf("%.2f", durationToMilliseconds(duration)),
	}
	if err != nil {
		attrs[spanAttrErrorType] = errorTypeOf(err)
	}

	s.finishSpan(span, status, attrs)
}

func (s *LoanStore) finishRead(ctx context.Context, span loanstore.SpanContext, duration time.Duration, loanCount int, err error) {
	status := statusSuccess
	attrs := map[string]string{spanAttrDurationMS: fmt.Sprintf("%.2f", durationToMilliseconds(duration))}

	if err != nil {
		status = statusError
		attrs[spanAttrErrorType] = errorTypeOf(err)
	} else {
		attrs[spanAttrLoanCount] = strconv.Itoa(loanCount)
		s.recordValue(ctx, metricLoansRead, float64(loanCount), map[string]string{labelOperation: operationRead})
	}

	s.recordDuration(ctx, metricReadDuration, duration, map[string]string{labelOperation: operationRead, labelStatus: status})
	s.finishSpan(span, status, attrs)
}

func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeTimeout
	case errors.Is(err, loanstore.ErrTransientConflict):
		return errorTypeTransient
	default:
		return errorTypeDatabase
	}
}
