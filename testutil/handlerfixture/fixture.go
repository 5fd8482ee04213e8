// Package handlerfixture wires an in-process store and coordination stack for command and query handler tests.
package handlerfixture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/coordination/memcache"
	"github.com/AntonStoeckl/library-loans/loanstore"
	"github.com/AntonStoeckl/library-loans/loanstore/memoryengine"
)

const (
	ResultTTL = time.Hour
)

// Fixture holds one memoryengine store and one memcache-backed coordination stack.
type Fixture struct {
	Store  *memoryengine.LoanStore
	Cache  *memcache.Cache
	Mutex  *coordination.Mutex
	Locker *shell.Locker

	nextMemberID int64
	nextItemID   int64
}

// New creates a Fixture whose locker waits at most maxWait for a held lock.
func New(t testing.TB, maxWait time.Duration) *Fixture {
	t.Helper()

	store, err := memoryengine.NewLoanStore()
	require.NoError(t, err)

	cache := memcache.New()

	mutex, err := coordination.NewMutex(cache, coordination.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	locker, err := shell.NewLocker(mutex, shell.LockPolicy{Lease: time.Minute, MaxWait: maxWait})
	require.NoError(t, err)

	return &Fixture{Store: store, Cache: cache, Mutex: mutex, Locker: locker}
}

// Results returns the idempotency cache for op.
func (f *Fixture) Results(op core.Operation) *coordination.IdempotencyCache[core.LoanResult] {
	return coordination.NewIdempotencyCache[core.LoanResult](f.Cache, f.Mutex, core.ResultCachePrefix(op))
}

// Guard returns a RequestGuard for op sharing this fixture's locker.
func (f *Fixture) Guard(op core.Operation) *shell.RequestGuard {
	return shell.NewRequestGuard(f.Locker, f.Results(op), op, ResultTTL)
}

// GivenMember registers a fresh member and returns its id.
func (f *Fixture) GivenMember(_ testing.TB) int64 {
	f.nextMemberID++
	f.Store.AddMember(f.nextMemberID)

	return f.nextMemberID
}

// GivenItem registers a fresh item with the given stock and returns its id.
func (f *Fixture) GivenItem(t testing.TB, totalCopies, availableCopies int) int64 {
	t.Helper()

	f.nextItemID++
	require.NoError(t, f.Store.AddItem(loanstore.Item{
		ID:              f.nextItemID,
		Title:           "Item",
		TotalCopies:     totalCopies,
		AvailableCopies: availableCopies,
	}))

	return f.nextItemID
}

// AvailableCopies reads the item's current stock.
func (f *Fixture) AvailableCopies(t testing.TB, itemID int64) int {
	t.Helper()

	item, err := f.Store.Item(context.Background(), itemID)
	require.NoError(t, err)

	return item.AvailableCopies
}
