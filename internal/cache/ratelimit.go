package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitKeyPrefix namespaces fixed-window counters: ratelimit:{scope}:{window}
const RateLimitKeyPrefix = "ratelimit:"

// fixedWindowScript increments the window counter and sets its expiry on first use.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return { count, redis.call('PTTL', KEYS[1]) }
`)

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func (r *RateLimiter) Limit() int { return r.limit }

// Allow records one request for key and reports whether it fits in the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	slot := r.now().UnixMilli() / r.window.Milliseconds()
	redisKey := fmt.Sprintf("%s%s:%d", RateLimitKeyPrefix, key, slot)

	vals, err := fixedWindowScript.Run(ctx, r.client, []string{redisKey}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected result %v", vals)
	}

	count, pttl := vals[0], vals[1]
	d := Decision{Allowed: count <= int64(r.limit), Remaining: r.limit - int(count)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed && pttl > 0 {
		d.RetryAfter = time.Duration(pttl) * time.Millisecond
	}
	return d, nil
}
