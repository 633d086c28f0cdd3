package redis

import (
	"context"
	"fmt"
	"time"
)

// FixedWindowLimiter counts requests per key in Redis so the limit
// holds across server instances. It shares the connection with the
// postcode cache.
type FixedWindowLimiter struct {
	client *Client
	limit  int
	window time.Duration
}

// NewFixedWindowLimiter allows limit requests per key per window.
func NewFixedWindowLimiter(client *Client, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{client: client, limit: limit, window: window}
}

// Allow increments the counter for key and reports whether the request
// fits inside the current window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	counter := "ratelimit:" + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, counter)
	pipe.ExpireNX(ctx, counter, l.window)
	ttl := pipe.TTL(ctx, counter)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}

	if incr.Val() > int64(l.limit) {
		return false, ttl.Val(), nil
	}
	return true, 0, nil
}
