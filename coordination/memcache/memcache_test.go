package memcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/coordination/memcache"
	"github.com/AntonStoeckl/library-loans/testutil/cachecontract"
	"github.com/AntonStoeckl/library-loans/testutil/testdoubles"
)

type fixture struct {
	cache *memcache.Cache
	clock *testdoubles.FakeClock
}

func (f fixture) Cache() coordination.SharedCache { return f.cache }

func (f fixture) Expire(_ testing.TB) { f.clock.Advance(2 * cachecontract.TTL) }

func newFixture(_ *testing.T) cachecontract.Fixture {
	clock := testdoubles.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	return fixture{cache: memcache.New(memcache.WithClock(clock.Now)), clock: clock}
}

func Test_Cache_Contract(t *testing.T) {
	cachecontract.Run(t, newFixture)
}

func Test_Cache_PurgeExpired_DropsOnlyExpiredEntries(t *testing.T) {
	// arrange
	ctx := context.Background()
	clock := testdoubles.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	cache := memcache.New(memcache.WithClock(clock.Now))
	require.NoError(t, cache.Set(ctx, "short", "a", time.Second))
	require.NoError(t, cache.Set(ctx, "long", "b", time.Hour))
	clock.Advance(time.Minute)

	// act
	purged, err := cache.PurgeExpired(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	exists, err := cache.Exists(ctx, "long")
	require.NoError(t, err)
	assert.True(t, exists)
}

func Test_Cache_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memcache.New().SetIfAbsent(ctx, "k", "v", time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
}
