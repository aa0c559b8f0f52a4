package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window request counter shared by all API instances.
type RateLimiter struct {
	client *Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per identifier in each window.
func NewRateLimiter(client *Client, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow counts one request for identifier and reports whether it fits in the
// current window, together with the time the window resets.
func (l *RateLimiter) Allow(ctx context.Context, identifier string) (bool, time.Time, error) {
	windowStart := l.now().Truncate(l.window)
	resetAt := windowStart.Add(l.window)
	key := RateLimitKey(identifier, windowStart)

	pipe := l.client.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, resetAt, fmt.Errorf("redis: rate limit: %w", err)
	}

	return incr.Val() <= l.limit, resetAt, nil
}
