package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore spins up a miniredis instance and a store on top of it.
func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := NewRedisStore(mr.Addr(), "", 0, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	_, err := NewRedisStore("127.0.0.1:1", "", 0, "")
	assert.Error(t, err)
}

func TestRedisStore_IncrementWithExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	t.Run("first increment starts the window", func(t *testing.T) {
		count, ttl, err := s.IncrementWithExpiry(ctx, "key1", 1, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, 10*time.Second, ttl)
	})

	t.Run("subsequent increments keep the window", func(t *testing.T) {
		count, ttl, err := s.IncrementWithExpiry(ctx, "key1", 1, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, 10*time.Second)
	})

	t.Run("window rolls over after expiry", func(t *testing.T) {
		_, _, err := s.IncrementWithExpiry(ctx, "key2", 1, 5*time.Second)
		require.NoError(t, err)

		mr.FastForward(6 * time.Second)

		count, _, err := s.IncrementWithExpiry(ctx, "key2", 1, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("keys are prefixed", func(t *testing.T) {
		_, _, err := s.IncrementWithExpiry(ctx, "key3", 1, 10*time.Second)
		require.NoError(t, err)
		assert.True(t, mr.Exists("test:key3"))
	})
}

func TestRedisStore_Get(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.True(t, IsKeyNotFound(err))
	})

	t.Run("existing key", func(t *testing.T) {
		_, _, err := s.IncrementWithExpiry(ctx, "key1", 7, 10*time.Second)
		require.NoError(t, err)

		value, err := s.Get(ctx, "key1")
		require.NoError(t, err)
		assert.Equal(t, int64(7), value)
	})
}

func TestRedisStore_Delete(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, _, err := s.IncrementWithExpiry(ctx, "key1", 1, 10*time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "key1"))

	_, err = s.Get(ctx, "key1")
	assert.True(t, IsKeyNotFound(err))
}

func TestRedisStore_ConcurrentIncrements(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.IncrementWithExpiry(ctx, "shared", 1, time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines), value)
}

func TestRedisStore_UnreachableAfterConnect(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	mr.Close()

	_, _, err := s.IncrementWithExpiry(ctx, "key1", 1, 10*time.Second)
	assert.Error(t, err)
}

func TestRedisStore_CloseIsIdempotent(t *testing.T) {
	s, _ := newTestRedisStore(t)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
