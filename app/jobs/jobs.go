package jobs

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-loans/app/features/query/overdueloans"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
)

const (
	// DefaultOverdueReportSpec runs the overdue report every day at midnight.
	DefaultOverdueReportSpec = "0 0 * * *"

	// DefaultCachePurgeSpec purges expired cache entries every ten minutes.
	DefaultCachePurgeSpec = "@every 10m"

	logMsgOverdueLoan         = "loan overdue"
	logMsgOverdueReportDone   = "overdue report completed"
	logMsgOverdueReportFailed = "overdue report failed"
	logMsgCachePurged         = "expired cache entries purged"
	logMsgCachePurgeFailed    = "purging expired cache entries failed"
	logAttrLoanID             = "loan_id"
	logAttrMemberID           = "member_id"
	logAttrItemID             = "item_id"
	logAttrDueDate            = "due_date"
	logAttrDaysOverdue        = "days_overdue"
	logAttrCount              = "count"
	logAttrDeleted            = "deleted"
	logAttrError              = "error"
)

// OverdueLister is satisfied by coordinator.LoanCoordinator.
type OverdueLister interface {
	OverdueLoans(ctx context.Context) (overdueloans.OverdueLoans, error)
}

// Purger is satisfied by the memcache and pgcache shared caches.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunOverdueReport logs one warning per overdue loan and returns how many there were.
func RunOverdueReport(ctx context.Context, lister OverdueLister, logger shell.Logger) (int, error) {
	report, err := lister.OverdueLoans(ctx)
	if err != nil {
		logError(logger, logMsgOverdueReportFailed, logAttrError, err.Error())
		return 0, err
	}

	for _, loan := range report.Loans {
		logWarn(logger, logMsgOverdueLoan,
			logAttrLoanID, loan.LoanID,
			logAttrMemberID, loan.MemberID,
			logAttrItemID, loan.ItemID,
			logAttrDueDate, loan.DueDate.Format(time.RFC3339),
			logAttrDaysOverdue, loan.DaysOverdue,
		)
	}

	logInfo(logger, logMsgOverdueReportDone, logAttrCount, report.Count)

	return report.Count, nil
}

// RunCachePurge deletes expired shared cache entries and returns how many it deleted.
func RunCachePurge(ctx context.Context, purger Purger, logger shell.Logger) (int64, error) {
	deleted, err := purger.PurgeExpired(ctx)
	if err != nil {
		logError(logger, logMsgCachePurgeFailed, logAttrError, err.Error())
		return 0, err
	}

	logInfo(logger, logMsgCachePurged, logAttrDeleted, deleted)

	return deleted, nil
}

func logInfo(logger shell.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

func logWarn(logger shell.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func logError(logger shell.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}
