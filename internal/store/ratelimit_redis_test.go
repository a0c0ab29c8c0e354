package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/admission-go/internal/ratelimit"
	"github.com/serroba/admission-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, opts ...store.RedisOption) (*store.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	s, err := store.NewRedisStore(client, opts...)
	require.NoError(t, err)

	return s, mr
}

func TestRedisStoreCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("counts down then denies", func(t *testing.T) {
		clock := newFakeClock()
		s, _ := newRedisStore(t, store.WithRedisClock(clock.Now))

		for _, want := range []int64{2, 1, 0} {
			v, err := s.Check(ctx, "k", time.Minute, 3)
			require.NoError(t, err)

			assert.True(t, v.Allowed)
			assert.Equal(t, want, v.Remaining)
			assert.Equal(t, int64(3), v.Limit)

			clock.Advance(time.Millisecond)
		}

		v, err := s.Check(ctx, "k", time.Minute, 3)
		require.NoError(t, err)

		assert.False(t, v.Allowed)
		assert.Equal(t, int64(0), v.Remaining)
		assert.Equal(t, time.Minute, v.RetryAfter)
	})

	t.Run("window slides", func(t *testing.T) {
		clock := newFakeClock()
		s, _ := newRedisStore(t, store.WithRedisClock(clock.Now))

		v, err := s.Check(ctx, "k", time.Minute, 2)
		require.NoError(t, err)
		require.True(t, v.Allowed)

		clock.Advance(30 * time.Second)

		v, err = s.Check(ctx, "k", time.Minute, 2)
		require.NoError(t, err)
		require.True(t, v.Allowed)
		assert.Equal(t, int64(0), v.Remaining)

		// The first request has left the window, the second has not.
		clock.Advance(31 * time.Second)

		v, err = s.Check(ctx, "k", time.Minute, 2)
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.Equal(t, int64(0), v.Remaining)
	})

	t.Run("denied requests are recorded", func(t *testing.T) {
		s, mr := newRedisStore(t)

		for range 3 {
			_, err := s.Check(ctx, "k", time.Minute, 1)
			require.NoError(t, err)
		}

		members, err := mr.ZMembers("ratelimit:k")
		require.NoError(t, err)
		assert.Len(t, members, 3)
	})

	t.Run("key expires with the window", func(t *testing.T) {
		s, mr := newRedisStore(t, store.WithKeyPrefix("rl:"))

		_, err := s.Check(ctx, "k", 90*time.Second, 5)
		require.NoError(t, err)

		assert.True(t, mr.Exists("rl:k"))
		assert.Equal(t, 90*time.Second, mr.TTL("rl:k"))

		mr.FastForward(91 * time.Second)
		assert.False(t, mr.Exists("rl:k"))
	})

	t.Run("unavailable backend", func(t *testing.T) {
		s, mr := newRedisStore(t)
		mr.Close()

		_, err := s.Check(ctx, "k", time.Minute, 5)

		require.ErrorIs(t, err, ratelimit.ErrBackendUnavailable)
		assert.Error(t, s.Ping(ctx))
	})
}

func TestRedisStoreConcurrency(t *testing.T) {
	s, mr := newRedisStore(t)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)

	for range 200 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := s.Check(context.Background(), "hot", time.Minute, 20)
			if err == nil && v.Allowed {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(20), allowed.Load())

	members, err := mr.ZMembers("ratelimit:hot")
	require.NoError(t, err)
	assert.Len(t, members, 200)
}

func TestRedisStoreUsesServerClock(t *testing.T) {
	ctx := context.Background()
	serverNow := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mr := miniredis.RunT(t)
	mr.SetTime(serverNow)

	newStore := func() *store.RedisStore {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		s, err := store.NewRedisStore(client)
		require.NoError(t, err)

		return s
	}

	// Two app servers share the key; neither clock is consulted.
	a, b := newStore(), newStore()

	v, err := a.Check(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	assert.Equal(t, serverNow.Add(time.Minute), v.ResetAt.UTC())
	assert.Equal(t, time.Minute, v.RetryAfter)

	mr.SetTime(serverNow.Add(30 * time.Second))

	v, err = b.Check(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, int64(0), v.Remaining)

	// Past the first entry's window on the server clock only.
	mr.SetTime(serverNow.Add(61 * time.Second))

	v, err = a.Check(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, int64(0), v.Remaining)
}

func TestRedisStorePing(t *testing.T) {
	s, _ := newRedisStore(t)

	assert.NoError(t, s.Ping(context.Background()))
}
