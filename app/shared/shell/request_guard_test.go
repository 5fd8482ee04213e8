package shell_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/coordination/memcache"
)

func newGuard(t *testing.T) (*shell.RequestGuard, *coordination.Mutex) {
	cache := memcache.New()

	mutex, err := coordination.NewMutex(cache, coordination.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	results := coordination.NewIdempotencyCache[core.LoanResult](cache, mutex, core.ResultCachePrefix(core.OperationBorrow))
	locker := newTestLocker(t, mutex, 5*time.Second)

	return shell.NewRequestGuard(locker, results, core.OperationBorrow, time.Hour), mutex
}

func someResult() core.LoanResult {
	borrowed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	return core.LoanResult{
		MemberID: 7,
		Entries: []core.LoanEntry{
			{LoanID: 1, ItemID: 11, BorrowDate: borrowed, DueDate: borrowed.Add(14 * 24 * time.Hour)},
		},
	}
}

func Test_RequestGuard_Run_ReplaysCompletedRequest(t *testing.T) {
	// arrange
	ctx := context.Background()
	guard, _ := newGuard(t)
	executions := 0
	execute := func(_ context.Context) (core.LoanResult, error) {
		executions++
		return someResult(), nil
	}

	// act
	first, err1 := guard.Run(ctx, "req-1", execute)
	second, err2 := guard.Run(ctx, "req-1", execute)

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, 1, executions)
	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.MemberID, second.MemberID)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, first.Entries[0].LoanID, second.Entries[0].LoanID)
	assert.True(t, first.Entries[0].DueDate.Equal(second.Entries[0].DueDate))
}

func Test_RequestGuard_Run_DoesNotCacheFailures(t *testing.T) {
	// arrange
	ctx := context.Background()
	guard, _ := newGuard(t)
	executions := 0

	// act
	_, err1 := guard.Run(ctx, "req-1", func(_ context.Context) (core.LoanResult, error) {
		executions++
		return core.LoanResult{}, core.Conflict(core.ReasonNotAvailable)
	})
	result, err2 := guard.Run(ctx, "req-1", func(_ context.Context) (core.LoanResult, error) {
		executions++
		return someResult(), nil
	})

	// assert
	assert.ErrorIs(t, err1, core.ErrConflict)
	assert.NoError(t, err2)
	assert.Equal(t, 2, executions)
	assert.False(t, result.Replayed)
}

func Test_RequestGuard_Run_EmptyRequestIDIsNotDeduplicated(t *testing.T) {
	ctx := context.Background()
	guard, _ := newGuard(t)
	executions := 0
	execute := func(_ context.Context) (core.LoanResult, error) {
		executions++
		return someResult(), nil
	}

	_, _ = guard.Run(ctx, "", execute)
	_, _ = guard.Run(ctx, "", execute)

	assert.Equal(t, 2, executions)
}

func Test_RequestGuard_Run_ReleasesRequestLock(t *testing.T) {
	ctx := context.Background()
	guard, mutex := newGuard(t)

	_, err := guard.Run(ctx, "req-1", func(_ context.Context) (core.LoanResult, error) {
		return core.LoanResult{}, errors.New("store down")
	})

	assert.Error(t, err)
	held, existsErr := mutex.Exists(ctx, core.RequestLockKey(core.OperationBorrow, "req-1"))
	require.NoError(t, existsErr)
	assert.False(t, held)
}

func Test_RequestGuard_Run_ConcurrentDuplicatesExecuteOnce(t *testing.T) {
	// arrange
	const duplicates = 6
	guard, _ := newGuard(t)
	var executions atomic.Int32
	var replays atomic.Int32
	var wg sync.WaitGroup

	// act
	for range duplicates {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := guard.Run(context.Background(), "req-1", func(_ context.Context) (core.LoanResult, error) {
				executions.Add(1)
				time.Sleep(20 * time.Millisecond)
				return someResult(), nil
			})
			assert.NoError(t, err)
			if result.Replayed {
				replays.Add(1)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), executions.Load())
	assert.Equal(t, int32(duplicates-1), replays.Load())
}
