package ratelimit

import (
	"context"
	"time"

	redisadapter "github.com/stagedoor/seat-inventory/internal/adapters/redis"
)

// RateLimiter counts actions per key in fixed windows backed by redis.
// On-sale traffic is bursty, so the window must not slide: the expiry is set
// only when the counter is created, otherwise a steady drip of requests
// would keep a hot IP blocked forever.
type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow reports whether key may perform another action in the current
// window. A redis failure denies the request; seat traffic is cheap to
// retry and an open limiter during an outage is worse.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return false
	}

	return incr.Val() <= int64(rate)
}
