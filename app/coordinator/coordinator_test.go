package coordinator_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/coordinator"
	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/app/shared/shell/config"
	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/coordination/memcache"
	"github.com/AntonStoeckl/library-loans/loanstore"
	"github.com/AntonStoeckl/library-loans/loanstore/memoryengine"
	"github.com/AntonStoeckl/library-loans/testutil/postgreswrapper"
	"github.com/AntonStoeckl/library-loans/testutil/storecontract"
	"github.com/AntonStoeckl/library-loans/testutil/testdoubles"
)

type memoryFixture struct {
	store  *memoryengine.LoanStore
	nextID atomic.Int64
}

func (f *memoryFixture) Store() loanstore.Store {
	return f.store
}

func (f *memoryFixture) GivenMember(_ testing.TB) int64 {
	id := f.nextID.Add(1)
	f.store.AddMember(id)

	return id
}

func (f *memoryFixture) GivenItem(t testing.TB, totalCopies, availableCopies int) int64 {
	id := f.nextID.Add(1)
	err := f.store.AddItem(loanstore.Item{ID: id, Title: "Item", TotalCopies: totalCopies, AvailableCopies: availableCopies})
	require.NoError(t, err, "error in arranging test data")

	return id
}

func newMemoryFixture(t *testing.T) storecontract.Fixture {
	store, err := memoryengine.NewLoanStore()
	require.NoError(t, err)

	return &memoryFixture{store: store}
}

func newPostgresFixture(t *testing.T) storecontract.Fixture {
	return postgreswrapper.New(t)
}

func testConfig() config.LibraryConfig {
	cfg := config.DefaultLibraryConfig()
	cfg.LockWait = 5 * time.Second
	cfg.LockPollInterval = 5 * time.Millisecond

	return cfg
}

func newCoordinator(t *testing.T, store loanstore.Store, opts ...coordinator.Option) *coordinator.LoanCoordinator {
	t.Helper()

	opts = append([]coordinator.Option{coordinator.WithRetryOptions(shell.WithBaseDelay(time.Millisecond))}, opts...)

	c, err := coordinator.New(store, memcache.New(), testConfig(), opts...)
	require.NoError(t, err)

	return c
}

func availableCopies(t *testing.T, store loanstore.Store, itemID int64) int {
	t.Helper()

	item, err := store.Item(context.Background(), itemID)
	require.NoError(t, err)

	return item.AvailableCopies
}

func Test_LoanCoordinator_Scenarios_MemoryEngine(t *testing.T) {
	runScenarios(t, newMemoryFixture)
}

func Test_LoanCoordinator_Scenarios_PostgresEngine(t *testing.T) {
	runScenarios(t, newPostgresFixture)
}

func runScenarios(t *testing.T, newFixture func(t *testing.T) storecontract.Fixture) {
	t.Run("borrow and return round trip", func(t *testing.T) { borrowReturnRoundTrip(t, newFixture(t)) })
	t.Run("two members race for the last copy", func(t *testing.T) { membersRaceForLastCopy(t, newFixture(t)) })
	t.Run("one member borrows the same item twice concurrently", func(t *testing.T) { sameMemberRace(t, newFixture(t), 3) })
	t.Run("one member borrows a single-copy item twice concurrently", func(t *testing.T) { sameMemberRace(t, newFixture(t), 1) })
	t.Run("duplicate request id is replayed", func(t *testing.T) { duplicateRequestReplayed(t, newFixture(t)) })
	t.Run("second return of a loan conflicts", func(t *testing.T) { secondReturnConflicts(t, newFixture(t)) })
	t.Run("batch with an unavailable item is all-or-nothing", func(t *testing.T) { batchAllOrNothing(t, newFixture(t)) })
	t.Run("loan cap counts active loans", func(t *testing.T) { loanCap(t, newFixture(t)) })
	t.Run("outcome lookup by request id", func(t *testing.T) { outcomeLookup(t, newFixture(t)) })
}

func borrowReturnRoundTrip(t *testing.T, f storecontract.Fixture) {
	// arrange
	ctx := context.Background()
	store := f.Store()
	c := newCoordinator(t, store)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 5, 5)

	// act
	borrowed, err := c.Borrow(ctx, memberID, []int64{itemID}, "")
	require.NoError(t, err)
	afterBorrow := availableCopies(t, store, itemID)

	returned, err := c.Return(ctx, memberID, []core.ReturnPair{{LoanID: borrowed.Entries[0].LoanID, ItemID: itemID}}, "")
	require.NoError(t, err)

	// assert
	assert.Equal(t, 4, afterBorrow)
	assert.Nil(t, borrowed.Entries[0].ReturnDate)
	assert.Equal(t, 5, availableCopies(t, store, itemID))
	require.Len(t, returned.Entries, 1)
	assert.NotNil(t, returned.Entries[0].ReturnDate)

	loans, err := c.MemberLoans(ctx, memberID, false)
	require.NoError(t, err)
	require.Equal(t, 1, loans.Count)
	assert.NotNil(t, loans.Loans[0].ReturnDate)
}

func membersRaceForLastCopy(t *testing.T, f storecontract.Fixture) {
	// arrange
	ctx := context.Background()
	store := f.Store()
	c := newCoordinator(t, store)
	itemID := f.GivenItem(t, 1, 1)
	members := []int64{f.GivenMember(t), f.GivenMember(t)}
	errs := make([]error, len(members))

	// act
	var wg sync.WaitGroup
	for i, memberID := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Borrow(ctx, memberID, []int64{itemID}, "")
		}()
	}
	wg.Wait()

	// assert
	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}

		failure, ok := core.AsFailure(err)
		require.True(t, ok, "unexpected error: %v", err)
		assert.ErrorIs(t, err, core.ErrConflict)
		assert.Equal(t, core.ReasonNotAvailable, failure.Reason)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, availableCopies(t, store, itemID))
}

// sameMemberRace expects the loser to see the member's active loan even when no copy is left.
func sameMemberRace(t *testing.T, f storecontract.Fixture, copies int) {
	// arrange
	ctx := context.Background()
	store := f.Store()
	c := newCoordinator(t, store)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, copies, copies)
	errs := make([]error, 2)

	// act
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Borrow(ctx, memberID, []int64{itemID}, "")
		}()
	}
	wg.Wait()

	// assert
	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}

		failure, ok := core.AsFailure(err)
		require.True(t, ok, "unexpected error: %v", err)
		assert.Equal(t, core.ReasonActiveLoanExists, failure.Reason)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, copies-1, availableCopies(t, store, itemID))
}

func duplicateRequestReplayed(t *testing.T, f storecontract.Fixture) {
	// arrange
	ctx := context.Background()
	store := f.Store()
	c := newCoordinator(t, store)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 2, 2)

	// act
	first, err1 := c.Borrow(ctx, memberID, []int64{itemID}, "X")
	second, err2 := c.Borrow(ctx, memberID, []int64{itemID}, "X")

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, first.Entries[0].LoanID, second.Entries[0].LoanID)
	assert.True(t, first.Entries[0].BorrowDate.Equal(second.Entries[0].BorrowDate))
	assert.True(t, first.Entries[0].DueDate.Equal(second.Entries[0].DueDate))
	assert.Equal(t, 1, availableCopies(t, store, itemID))
}

func secondReturnConflicts(t *testing.T, f storecontract.Fixture) {
	// arrange
	ctx := context.Background()
	store := f.Store()
	c := newCoordinator(t, store)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 1, 1)
	borrowed, err := c.Borrow(ctx, memberID, []int64{itemID}, "")
	require.NoError(t, err)
	pairs := []core.ReturnPair{{LoanID: borrowed.Entries[0].LoanID, ItemID: itemID}}

	// act
	_, err1 := c.Return(ctx, memberID, pairs, "")
	_, err2 := c.Return(ctx, memberID, pairs, "")

	// assert
	require.NoError(t, err1)
	require.ErrorIs(t, err2, core.ErrConflict)
	failure, _ := core.AsFailure(err2)
	assert.Equal(t, core.ReasonAlreadyReturned, failure.Reason)
	assert.Equal(t, 1, availableCopies(t, store, itemID))
}

func batchAllOrNothing(t *testing.T, f storecontract.Fixture) {
	// arrange
	ctx := context.Background()
	store := f.Store()
	c := newCoordinator(t, store)
	memberID := f.GivenMember(t)
	first := f.GivenItem(t, 2, 2)
	second := f.GivenItem(t, 1, 0)
	third := f.GivenItem(t, 2, 2)

	// act
	_, err := c.Borrow(ctx, memberID, []int64{first, second, third}, "")

	// assert
	require.ErrorIs(t, err, core.ErrConflict)
	failure, _ := core.AsFailure(err)
	assert.Equal(t, second, failure.ItemID)
	assert.Equal(t, 2, availableCopies(t, store, first))
	assert.Equal(t, 2, availableCopies(t, store, third))

	loans, err := c.MemberLoans(ctx, memberID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, loans.Count)
}

func loanCap(t *testing.T, f storecontract.Fixture) {
	// arrange
	ctx := context.Background()
	store := f.Store()
	c := newCoordinator(t, store)
	memberID := f.GivenMember(t)
	limit := testConfig().MaxBooksPerMember

	itemIDs := make([]int64, 0, limit)
	for range limit {
		itemIDs = append(itemIDs, f.GivenItem(t, 1, 1))
	}
	extra := f.GivenItem(t, 1, 1)

	_, err := c.Borrow(ctx, memberID, itemIDs[:limit-1], "")
	require.NoError(t, err)

	// act
	_, errOver := c.Borrow(ctx, memberID, []int64{itemIDs[limit-1], extra}, "")
	_, errAtCap := c.Borrow(ctx, memberID, []int64{itemIDs[limit-1]}, "")

	// assert
	require.ErrorIs(t, errOver, core.ErrConflict)
	failure, _ := core.AsFailure(errOver)
	assert.Equal(t, core.ReasonLoanLimitReached, failure.Reason)
	assert.NoError(t, errAtCap)
}

func outcomeLookup(t *testing.T, f storecontract.Fixture) {
	// arrange
	ctx := context.Background()
	c := newCoordinator(t, f.Store())
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 1, 1)
	borrowed, err := c.Borrow(ctx, memberID, []int64{itemID}, "lookup-1")
	require.NoError(t, err)

	// act
	found, errFound := c.GetByRequestID(ctx, core.OperationBorrow, "lookup-1")
	_, errOtherOp := c.GetByRequestID(ctx, core.OperationReturn, "lookup-1")
	_, errUnknown := c.GetByRequestID(ctx, core.OperationBorrow, "never-sent")

	// assert
	require.NoError(t, errFound)
	assert.Equal(t, borrowed.Entries[0].LoanID, found.Entries[0].LoanID)
	assert.ErrorIs(t, errOtherOp, core.ErrNotFoundOrExpired)
	assert.ErrorIs(t, errUnknown, core.ErrNotFoundOrExpired)
}

func Test_LoanCoordinator_ConcurrentDuplicatesMutateOnce(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newMemoryFixture(t)
	store := f.Store()
	c := newCoordinator(t, store)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 5, 5)

	const callers = 6
	results := make([]core.LoanResult, callers)
	errs := make([]error, callers)

	// act
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Borrow(ctx, memberID, []int64{itemID}, "dup")
		}()
	}
	wg.Wait()

	// assert
	replayed := 0
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Entries[0].LoanID, results[i].Entries[0].LoanID)
		if results[i].Replayed {
			replayed++
		}
	}
	assert.Equal(t, callers-1, replayed)
	assert.Equal(t, 4, availableCopies(t, store, itemID))
}

func Test_LoanCoordinator_ResendWhileWaitingForMemberLockIsReplayed(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newMemoryFixture(t)
	store := f.Store()
	cache := memcache.New()
	cfg := testConfig()
	cfg.LockLease = 300 * time.Millisecond
	cfg.LockWait = 2 * time.Second
	c, err := coordinator.New(store, cache, cfg, coordinator.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)))
	require.NoError(t, err)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 2, 2)

	otherOwner, err := coordination.NewMutex(cache)
	require.NoError(t, err)
	held, err := otherOwner.Acquire(ctx, core.MemberLockKey(memberID), "someone-else", time.Second)
	require.NoError(t, err)
	require.True(t, held)

	var original core.LoanResult
	var errOriginal error
	done := make(chan struct{})

	// act
	go func() {
		defer close(done)
		original, errOriginal = c.Borrow(ctx, memberID, []int64{itemID}, "R")
	}()

	time.Sleep(500 * time.Millisecond) // longer than LockLease, while the original still waits for the member
	resent, errResent := c.Borrow(ctx, memberID, []int64{itemID}, "R")
	<-done

	// assert
	require.NoError(t, errOriginal)
	require.NoError(t, errResent)
	assert.False(t, original.Replayed)
	assert.True(t, resent.Replayed)
	require.Len(t, resent.Entries, 1)
	assert.Equal(t, original.Entries[0].LoanID, resent.Entries[0].LoanID)
	assert.Equal(t, 1, availableCopies(t, store, itemID))
}

func Test_LoanCoordinator_FailedRequestCanBeRetriedWithSameID(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newMemoryFixture(t)
	c := newCoordinator(t, f.Store())
	memberID := f.GivenMember(t)
	available := f.GivenItem(t, 1, 1)

	// act
	_, errFirst := c.Borrow(ctx, memberID, []int64{available, 404}, "retry-me")
	result, errSecond := c.Borrow(ctx, memberID, []int64{available}, "retry-me")

	// assert
	assert.ErrorIs(t, errFirst, core.ErrNotFound)
	require.NoError(t, errSecond)
	assert.False(t, result.Replayed)
}

func Test_LoanCoordinator_Observability(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newMemoryFixture(t)
	logger, logSpy := testdoubles.NewSpyLogger()
	metricsSpy := testdoubles.NewMetricsCollectorSpy()
	tracingSpy := testdoubles.NewTracingCollectorSpy()
	c := newCoordinator(t, f.Store(),
		coordinator.WithContextualLogger(logger),
		coordinator.WithMetrics(metricsSpy),
		coordinator.WithTracing(tracingSpy),
	)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 1, 1)

	// act
	_, err := c.Borrow(ctx, memberID, []int64{itemID}, "obs-1")
	require.NoError(t, err)
	_, err = c.Borrow(ctx, memberID, []int64{itemID}, "obs-1")
	require.NoError(t, err)
	_, err = c.Borrow(ctx, f.GivenMember(t), []int64{itemID}, "")
	require.Error(t, err)

	// assert
	labels := func(status string) map[string]string {
		return shell.BuildCommandLabels("BorrowBooks", status)
	}
	assert.Equal(t, 1, metricsSpy.CountCounter(shell.CommandHandlerCallsMetric, labels(shell.StatusSuccess)))
	assert.Equal(t, 1, metricsSpy.CountCounter(shell.CommandHandlerCallsMetric, labels(shell.StatusReplayed)))
	assert.Equal(t, 1, metricsSpy.CountCounter(shell.CommandHandlerCallsMetric, labels(shell.StatusRejected)))
	assert.Positive(t, metricsSpy.CountCounter("coordination_lock_acquire_total", map[string]string{"result": "acquired"}))
	assert.Len(t, tracingSpy.FindSpans(shell.SpanNameCommandHandle), 3)
	assert.True(t, logSpy.HasLog(slog.LevelInfo, shell.LogMsgCommandCompleted))
}

func Test_New_RejectsInvalidConfig(t *testing.T) {
	// arrange
	f := newMemoryFixture(t)
	cfg := testConfig()
	cfg.LockWait = 0

	// act
	_, err := coordinator.New(f.Store(), memcache.New(), cfg)

	// assert
	assert.True(t, errors.Is(err, config.ErrInvalidLibraryConfig))
}
