package coordination_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/coordination/memcache"
	"github.com/AntonStoeckl/library-loans/testutil/testdoubles"
)

type outcome struct {
	MemberID int64     `json:"member_id"`
	LoanIDs  []int64   `json:"loan_ids"`
	DueDate  time.Time `json:"due_date"`
}

func newIdempotencyCache(t *testing.T, cache coordination.SharedCache) *coordination.IdempotencyCache[outcome] {
	return coordination.NewIdempotencyCache[outcome](cache, newMutex(t, cache), "loan:request:")
}

func Test_IdempotencyCache_PutThenGet(t *testing.T) {
	// arrange
	ctx := context.Background()
	idempotency := newIdempotencyCache(t, memcache.New())
	stored := outcome{
		MemberID: 7,
		LoanIDs:  []int64{11, 12},
		DueDate:  time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
	}

	// act
	err := idempotency.Put(ctx, "req-1", stored, time.Hour)
	got, found, getErr := idempotency.Get(ctx, "req-1")

	// assert
	require.NoError(t, err)
	require.NoError(t, getErr)
	assert.True(t, found)
	assert.Equal(t, stored.MemberID, got.MemberID)
	assert.Equal(t, stored.LoanIDs, got.LoanIDs)
	assert.True(t, stored.DueDate.Equal(got.DueDate))
}

func Test_IdempotencyCache_Get_Unknown(t *testing.T) {
	idempotency := newIdempotencyCache(t, memcache.New())

	_, found, err := idempotency.Get(context.Background(), "never-seen")

	require.NoError(t, err)
	assert.False(t, found)
}

func Test_IdempotencyCache_EntriesExpire(t *testing.T) {
	// arrange
	ctx := context.Background()
	clock := testdoubles.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	idempotency := newIdempotencyCache(t, memcache.New(memcache.WithClock(clock.Now)))
	require.NoError(t, idempotency.Put(ctx, "req-1", outcome{MemberID: 7}, time.Hour))

	// act
	clock.Advance(time.Hour + time.Second)
	_, found, err := idempotency.Get(ctx, "req-1")

	// assert
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_IdempotencyCache_Put_ReplacesEntry(t *testing.T) {
	ctx := context.Background()
	idempotency := newIdempotencyCache(t, memcache.New())

	require.NoError(t, idempotency.Put(ctx, "req-1", outcome{MemberID: 7}, time.Hour))
	require.NoError(t, idempotency.Put(ctx, "req-1", outcome{MemberID: 8}, time.Hour))

	got, found, err := idempotency.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(8), got.MemberID)
}

func Test_IdempotencyCache_KeyPrefixesSeparateOperations(t *testing.T) {
	// arrange
	ctx := context.Background()
	cache := memcache.New()
	mutex := newMutex(t, cache)
	borrows := coordination.NewIdempotencyCache[outcome](cache, mutex, "loan:request:")
	returns := coordination.NewIdempotencyCache[outcome](cache, mutex, "return:request:")

	// act
	require.NoError(t, borrows.Put(ctx, "shared-id", outcome{MemberID: 7}, time.Hour))
	_, foundAsReturn, err := returns.Get(ctx, "shared-id")

	// assert
	require.NoError(t, err)
	assert.False(t, foundAsReturn)
}

func Test_IdempotencyCache_Get_CorruptEntry(t *testing.T) {
	// arrange
	ctx := context.Background()
	cache := memcache.New()
	idempotency := newIdempotencyCache(t, cache)
	require.NoError(t, cache.Set(ctx, "loan:request:req-1", "{not json", time.Hour))

	// act
	_, found, err := idempotency.Get(ctx, "req-1")

	// assert
	assert.False(t, found)
	assert.ErrorIs(t, err, coordination.ErrCorruptCacheEntry)
}

func Test_IdempotencyCache_EmptyRequestID(t *testing.T) {
	idempotency := newIdempotencyCache(t, memcache.New())

	_, _, getErr := idempotency.Get(context.Background(), "")
	putErr := idempotency.Put(context.Background(), "", outcome{}, time.Hour)

	assert.ErrorIs(t, getErr, coordination.ErrEmptyRequestID)
	assert.ErrorIs(t, putErr, coordination.ErrEmptyRequestID)
}

func Test_IdempotencyCache_InProgress(t *testing.T) {
	// arrange
	ctx := context.Background()
	cache := memcache.New()
	mutex := newMutex(t, cache)
	idempotency := coordination.NewIdempotencyCache[outcome](cache, mutex, "loan:request:")

	// act
	before, err1 := idempotency.InProgress(ctx, "request:borrow:req-1")
	_, err2 := mutex.Acquire(ctx, "request:borrow:req-1", "owner", time.Minute)
	during, err3 := idempotency.InProgress(ctx, "request:borrow:req-1")

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)
	assert.False(t, before)
	assert.True(t, during)
}
