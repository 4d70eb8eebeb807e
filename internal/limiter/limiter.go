package limiter

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Result of an admission check.
type Result struct {
	Allowed   bool
	Remaining int64
	// RetryAfter is set on rejection: how long until the window resets.
	RetryAfter time.Duration
}

// Limiter admits or rejects a request under a fixed window of max
// requests per window duration, counted per key.
type Limiter interface {
	Allow(ctx context.Context, key string, max int64, window time.Duration) (Result, error)
}

// window is one client's counter. hits is guarded by mu so concurrent
// requests sharing a key cannot lose increments.
type window struct {
	mu      sync.Mutex
	hits    int64
	resetAt time.Time
}

// MemoryLimiter is a best-effort, single-process fixed-window counter.
// Windows live in a TTL cache whose janitor sweeps expired entries in the
// background, bounding memory without affecting admission for live keys.
// It does not coordinate across processes.
type MemoryLimiter struct {
	windows *gocache.Cache
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, max int64, windowDur time.Duration) (Result, error) {
	now := time.Now()

	for {
		v, found := l.windows.Get(key)
		if !found {
			w := &window{resetAt: now.Add(windowDur)}
			if err := l.windows.Add(key, w, windowDur); err != nil {
				// Lost the race to open this window; use the winner's.
				continue
			}
			v = w
		}

		w := v.(*window)
		w.mu.Lock()
		if now.After(w.resetAt) {
			// Stale entry the janitor has not swept yet.
			w.mu.Unlock()
			l.windows.Delete(key)
			continue
		}
		w.hits++
		hits, resetAt := w.hits, w.resetAt
		w.mu.Unlock()

		if hits > max {
			return Result{
				Allowed:    false,
				Remaining:  0,
				RetryAfter: resetAt.Sub(now),
			}, nil
		}
		return Result{Allowed: true, Remaining: max - hits}, nil
	}
}

// Interface check
var _ Limiter = (*MemoryLimiter)(nil)
