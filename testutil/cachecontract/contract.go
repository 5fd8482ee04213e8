// Package cachecontract holds the behaviour every coordination.SharedCache
// backend must show, run against the memory, Redis and PostgreSQL backends.
package cachecontract

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/coordination"
)

// TTL is the entry lifetime used by the contract. Backends that cannot fake time sleep past it in Expire.
const TTL = 200 * time.Millisecond

// Fixture gives the contract a cache plus a way to let entries written with TTL expire.
type Fixture interface {
	Cache() coordination.SharedCache
	Expire(t testing.TB)
}

// Run executes the whole contract as subtests.
func Run(t *testing.T, newFixture func(t *testing.T) Fixture) {
	t.Run("SetIfAbsent stores only once", func(t *testing.T) { setIfAbsentOnce(t, newFixture(t)) })
	t.Run("expired entries are invisible and replaceable", func(t *testing.T) { expiry(t, newFixture(t)) })
	t.Run("Set overwrites", func(t *testing.T) { setOverwrites(t, newFixture(t)) })
	t.Run("DeleteIfEquals checks the value", func(t *testing.T) { deleteIfEquals(t, newFixture(t)) })
	t.Run("Delete removes", func(t *testing.T) { deleteRemoves(t, newFixture(t)) })
	t.Run("concurrent SetIfAbsent has one winner", func(t *testing.T) { oneWinner(t, newFixture(t)) })
}

func uniqueKey(prefix string) string {
	return fmt.Sprintf("%s:%s", prefix, uuid.NewString())
}

func setIfAbsentOnce(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	key := uniqueKey("once")

	// act
	first, err1 := f.Cache().SetIfAbsent(ctx, key, "a", time.Minute)
	second, err2 := f.Cache().SetIfAbsent(ctx, key, "b", time.Minute)
	value, found, err3 := f.Cache().Get(ctx, key)

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)
	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, found)
	assert.Equal(t, "a", value)
}

func expiry(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	key := uniqueKey("expiry")
	stored, err := f.Cache().SetIfAbsent(ctx, key, "a", TTL)
	require.NoError(t, err)
	require.True(t, stored)

	// act
	f.Expire(t)

	// assert
	exists, err := f.Cache().Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	deleted, err := f.Cache().DeleteIfEquals(ctx, key, "a")
	require.NoError(t, err)
	assert.False(t, deleted)

	retaken, err := f.Cache().SetIfAbsent(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, retaken)

	value, _, err := f.Cache().Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "b", value)
}

func setOverwrites(t *testing.T, f Fixture) {
	ctx := context.Background()
	key := uniqueKey("set")

	require.NoError(t, f.Cache().Set(ctx, key, "a", time.Minute))
	require.NoError(t, f.Cache().Set(ctx, key, "b", time.Minute))

	value, found, err := f.Cache().Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b", value)
}

func deleteIfEquals(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	key := uniqueKey("cad")
	_, err := f.Cache().SetIfAbsent(ctx, key, "owner", time.Minute)
	require.NoError(t, err)

	// act
	byStranger, err1 := f.Cache().DeleteIfEquals(ctx, key, "stranger")
	stillThere, err2 := f.Cache().Exists(ctx, key)
	byOwner, err3 := f.Cache().DeleteIfEquals(ctx, key, "owner")
	gone, err4 := f.Cache().Exists(ctx, key)

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)
	require.NoError(t, err4)
	assert.False(t, byStranger)
	assert.True(t, stillThere)
	assert.True(t, byOwner)
	assert.False(t, gone)
}

func deleteRemoves(t *testing.T, f Fixture) {
	ctx := context.Background()
	key := uniqueKey("del")

	require.NoError(t, f.Cache().Set(ctx, key, "a", time.Minute))
	require.NoError(t, f.Cache().Delete(ctx, key))

	_, found, err := f.Cache().Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func oneWinner(t *testing.T, f Fixture) {
	// arrange
	const contenders = 16
	key := uniqueKey("race")
	var winners atomic.Int32
	var wg sync.WaitGroup

	// act
	for i := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()

			stored, err := f.Cache().SetIfAbsent(context.Background(), key, fmt.Sprintf("owner-%d", i), time.Minute)
			assert.NoError(t, err)
			if stored {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), winners.Load())
}
