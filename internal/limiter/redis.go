package limiter

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter is the shared-counter variant for multi-process
// deployments: fixed window via INCR on a per-window bucket key, expired
// by redis itself. Selected when a redis address is configured.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
}

func NewRedisLimiter(client *rdb.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, max int64, window time.Duration) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(window)
	bucket := fmt.Sprintf("%s%s:%d", l.prefix, key, winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	hits := incr.Val()
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{Allowed: hits <= max, Remaining: remaining}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(window).Sub(now)
	}
	return res, nil
}

// Interface check
var _ Limiter = (*RedisLimiter)(nil)
