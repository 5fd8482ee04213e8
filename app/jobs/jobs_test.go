package jobs_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/features/query/overdueloans"
	"github.com/AntonStoeckl/library-loans/app/jobs"
	"github.com/AntonStoeckl/library-loans/coordination/memcache"
	"github.com/AntonStoeckl/library-loans/testutil/testdoubles"
)

type stubLister struct {
	report overdueloans.OverdueLoans
	err    error
}

func (s stubLister) OverdueLoans(_ context.Context) (overdueloans.OverdueLoans, error) {
	return s.report, s.err
}

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeExpired(_ context.Context) (int64, error) {
	p.calls.Add(1)
	return 0, nil
}

func Test_RunOverdueReport_LogsEveryOverdueLoan(t *testing.T) {
	// arrange
	logger, logSpy := testdoubles.NewSpyLogger()
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := stubLister{report: overdueloans.OverdueLoans{
		Loans: []overdueloans.OverdueLoan{
			{LoanID: 1, MemberID: 10, ItemID: 100, DueDate: due, DaysOverdue: 3},
			{LoanID: 2, MemberID: 11, ItemID: 101, DueDate: due, DaysOverdue: 1},
		},
		Count: 2,
	}}

	// act
	count, err := jobs.RunOverdueReport(context.Background(), lister, logger)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, logSpy.CountLogs(slog.LevelWarn, "loan overdue"))
	assert.True(t, logSpy.HasLogWithAttr(slog.LevelWarn, "loan overdue", "days_overdue"))
	assert.True(t, logSpy.HasLog(slog.LevelInfo, "overdue report completed"))
}

func Test_RunOverdueReport_Failure(t *testing.T) {
	// arrange
	logger, logSpy := testdoubles.NewSpyLogger()
	readErr := errors.New("replica unavailable")

	// act
	_, err := jobs.RunOverdueReport(context.Background(), stubLister{err: readErr}, logger)

	// assert
	assert.ErrorIs(t, err, readErr)
	assert.True(t, logSpy.HasLog(slog.LevelError, "overdue report failed"))
}

func Test_RunCachePurge_DeletesExpiredEntries(t *testing.T) {
	// arrange
	ctx := context.Background()
	clock := testdoubles.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := memcache.New(memcache.WithClock(clock.Now))
	require.NoError(t, cache.Set(ctx, "short", "v", time.Minute))
	require.NoError(t, cache.Set(ctx, "long", "v", time.Hour))
	clock.Advance(2 * time.Minute)
	logger, logSpy := testdoubles.NewSpyLogger()

	// act
	deleted, err := jobs.RunCachePurge(ctx, cache, logger)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.True(t, logSpy.HasLogWithAttr(slog.LevelInfo, "expired cache entries purged", "deleted"))
}

func Test_Scheduler_RejectsInvalidSpecAndNilTargets(t *testing.T) {
	// arrange
	scheduler := jobs.NewScheduler()

	// act
	_, errSpec := scheduler.AddCachePurge("every now and then", &countingPurger{})
	_, errNil := scheduler.AddOverdueReport(jobs.DefaultOverdueReportSpec, nil)

	// assert
	assert.Error(t, errSpec)
	assert.ErrorIs(t, errNil, jobs.ErrNilJobTarget)
	assert.Empty(t, scheduler.Entries())
}

func Test_Scheduler_RunsScheduledJobs(t *testing.T) {
	// arrange
	purger := &countingPurger{}
	scheduler := jobs.NewScheduler(jobs.WithJobTimeout(time.Second), jobs.WithLocation(time.UTC))

	_, err := scheduler.AddCachePurge("@every 1s", purger)
	require.NoError(t, err)
	_, err = scheduler.AddOverdueReport(jobs.DefaultOverdueReportSpec, stubLister{})
	require.NoError(t, err)

	// act
	scheduler.Start()

	// assert
	assert.Eventually(t, func() bool { return purger.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, scheduler.Stop(stopCtx))
	assert.Len(t, scheduler.Entries(), 2)
}
