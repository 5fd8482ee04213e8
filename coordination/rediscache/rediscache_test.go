package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/coordination/rediscache"
	"github.com/AntonStoeckl/library-loans/testutil/cachecontract"
)

type fixture struct {
	cache  *rediscache.Cache
	server *miniredis.Miniredis
}

func (f fixture) Cache() coordination.SharedCache { return f.cache }

// Expire moves the server clock; miniredis does not expire keys on wall time.
func (f fixture) Expire(_ testing.TB) { f.server.FastForward(2 * cachecontract.TTL) }

func newFixture(t *testing.T) cachecontract.Fixture {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache, err := rediscache.New(client)
	require.NoError(t, err)

	return fixture{cache: cache, server: server}
}

func Test_Cache_Contract(t *testing.T) {
	cachecontract.Run(t, newFixture)
}

func Test_New_NilClient(t *testing.T) {
	_, err := rediscache.New(nil)

	assert.ErrorIs(t, err, coordination.ErrSharedCacheFailed)
}

func Test_Cache_WithNamespace_PrefixesKeys(t *testing.T) {
	// arrange
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache, err := rediscache.New(client, rediscache.WithNamespace("staging:"))
	require.NoError(t, err)

	// act
	err = cache.Set(context.Background(), "loan:lock:member:7", "owner", time.Minute)

	// assert
	require.NoError(t, err)
	assert.True(t, server.Exists("staging:loan:lock:member:7"))
	assert.False(t, server.Exists("loan:lock:member:7"))
}

func Test_Cache_ServerDown(t *testing.T) {
	// arrange
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cache, err := rediscache.New(client)
	require.NoError(t, err)
	server.Close()

	// act
	_, err = cache.SetIfAbsent(context.Background(), "k", "v", time.Minute)

	// assert
	assert.ErrorIs(t, err, coordination.ErrSharedCacheFailed)
}
