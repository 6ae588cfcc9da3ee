package store

import (
	"context"
	"runtime"
	"testing"
	"time"

	"fleet-observer/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = s.Get(ctx, "missing")
	assert.True(t, helpers.IsNotFound(err))
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.Now = func() time.Time { return now }

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", 30*time.Second))

	// Still readable just before expiry.
	now = now.Add(29 * time.Second)
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	// Gone after expiry.
	now = now.Add(2 * time.Second)
	_, err = s.Get(ctx, "k")
	assert.True(t, helpers.IsNotFound(err))
}

func TestMemoryStoreSetNX(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.Now = func() time.Time { return now }

	fresh, err := s.SetNX(ctx, "marker", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = s.SetNX(ctx, "marker", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh, "second SetNX on a live key must lose")

	// The losing write must not overwrite the value.
	got, err := s.Get(ctx, "marker")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	// After expiry the key is free again.
	now = now.Add(2 * time.Minute)
	fresh, err = s.SetNX(ctx, "marker", "3", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMemoryStoreIncr(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t.Run("IncrBy from zero", func(t *testing.T) {
		n, err := s.IncrBy(ctx, "counter", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.IncrBy(ctx, "counter", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("IncrByFloat from zero", func(t *testing.T) {
		f, err := s.IncrByFloat(ctx, "float_counter", 1.5)
		require.NoError(t, err)
		assert.InDelta(t, 1.5, f, 1e-9)

		f, err = s.IncrByFloat(ctx, "float_counter", 2.25)
		require.NoError(t, err)
		assert.InDelta(t, 3.75, f, 1e-9)
	})

	t.Run("IncrBy rejects non-numeric values", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "text", "hello"))
		_, err := s.IncrBy(ctx, "text", 1)
		assert.Error(t, err)
	})
}

func TestMemoryStoreKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "tick:latest:EURUSD", "a"))
	require.NoError(t, s.Set(ctx, "tick:latest:GBPUSD", "b"))
	require.NoError(t, s.Set(ctx, "agent:node:n1", "c"))

	keys, err := s.Keys(ctx, "tick:latest:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.ElementsMatch(t, []string{"tick:latest:EURUSD", "tick:latest:GBPUSD"}, keys)

	// Exact match.
	keys, err = s.Keys(ctx, "agent:node:n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent:node:n1"}, keys)

	// Expired keys never appear in scans.
	now := time.Now()
	s.Now = func() time.Time { return now }
	require.NoError(t, s.SetWithTTL(ctx, "tick:latest:USDJPY", "d", time.Second))
	now = now.Add(2 * time.Second)

	keys, err = s.Keys(ctx, "tick:latest:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.True(t, helpers.IsNotFound(err))

	// Deleting an absent key is a no-op.
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestMemoryStoreJanitor(t *testing.T) {
	t.Run("starts exactly one goroutine", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()

		before := runtime.NumGoroutine()
		s.StartJanitor(time.Millisecond)
		s.StartJanitor(time.Millisecond)
		s.StartJanitor(time.Millisecond)

		assert.LessOrEqual(t, runtime.NumGoroutine(), before+1)
	})

	t.Run("drops expired entries from the map", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		ctx := context.Background()

		now := time.Now()
		s.Now = func() time.Time { return now }

		require.NoError(t, s.SetWithTTL(ctx, "k", "v", time.Second))
		now = now.Add(2 * time.Second)

		s.StartJanitor(time.Millisecond)
		assert.Eventually(t, func() bool {
			s.mu.RLock()
			defer s.mu.RUnlock()
			_, present := s.data["k"]
			return !present
		}, time.Second, 5*time.Millisecond)
	})
}
