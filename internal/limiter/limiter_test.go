package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAdmitsUpToMax(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, int64(3-i-1), res.Remaining)
	}

	res, err := l.Allow(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	res, err := l.Allow(ctx, "client", 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Allow(ctx, "client", 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	time.Sleep(80 * time.Millisecond)

	res, err = l.Allow(ctx, "client", 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "counter should reset after the window elapses")
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	res, err := l.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = l.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "another key must not be affected")
}

func TestMemoryLimiterConcurrentSameKey(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	const workers = 20
	const max = 5

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "shared", max, time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			if res.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, admitted, "exactly max requests admitted under contention")
}
