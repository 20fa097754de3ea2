// Package ratelimit provides a Redis-backed sliding window limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, then admits the call
// when fewer than max entries remain. A negative result is the wait in ms.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(oldest[2] + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter allows at most limit calls per key in any window.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewSlidingWindowLimiter creates a limiter. Keys are stored under prefix.
func NewSlidingWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *SlidingWindowLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &SlidingWindowLimiter{
		redis:  client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Limit returns the configured number of calls per window.
func (l *SlidingWindowLimiter) Limit() int { return l.limit }

// Allow reports whether a call for key may proceed and, if not, how long to wait.
// On a Redis error the call is allowed and the error returned for logging.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	result, err := slidingWindow.Run(ctx, l.redis, []string{l.prefix + key},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
	).Int64()
	if err != nil {
		return true, 0, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	switch {
	case result == 1:
		return true, 0, nil
	case result < 0:
		return false, time.Duration(-result) * time.Millisecond, nil
	default:
		return false, l.window, nil
	}
}
