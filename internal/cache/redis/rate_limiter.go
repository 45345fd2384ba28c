package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowLua counts requests in the trailing window and admits one
// more if under the limit.
//
// KEYS: zset. ARGV: now (µs), window (µs), limit, member. Returns {allowed, count}.
const slidingWindowLua = `
local now, window, limit = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)
local count = redis.call('ZCARD', KEYS[1])
if count < limit then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  redis.call('PEXPIRE', KEYS[1], math.ceil(window / 1000))
  return {1, count + 1}
end
return {0, count}
`

const waitPollInterval = 50 * time.Millisecond

// RateLimiter is a sliding-window limiter shared by every process using the
// same Redis, so several bot instances stay under one exchange API quota.
type RateLimiter struct {
	c             *Client
	limit         int
	window        time.Duration
	slidingWindow *redis.Script
}

// NewRateLimiter allows limit requests per window for each key.
func NewRateLimiter(c *Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		c:             c,
		limit:         limit,
		window:        window,
		slidingWindow: redis.NewScript(slidingWindowLua),
	}
}

// Allow counts one request for key if the limit permits it.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	result, err := rl.slidingWindow.Run(ctx, rl.c.rdb,
		[]string{rl.c.Key("ratelimit:" + key)},
		time.Now().UnixMicro(),
		rl.window.Microseconds(),
		rl.limit,
		uuid.New().String(),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(result))
	}
	return result[0] == 1, nil
}

// Wait blocks until a request for key is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := rl.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}
