package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindow limits callers to a number of requests per window using Redis.
// Counters are shared across replicas; each window key expires on its own.
type FixedWindow struct {
	client      *redis.Client
	prefix      string
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewFixedWindow creates a new fixed window rate limiter
func NewFixedWindow(client *redis.Client, maxRequests int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		client:      client,
		prefix:      "catalog:ratelimit",
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Key returns the counter key for caller in the current window
func (fw *FixedWindow) Key(caller string) string {
	bucket := fw.now().UnixNano() / int64(fw.window)
	return fmt.Sprintf("%s:%s:%d", fw.prefix, caller, bucket)
}

// Allow counts a request from caller and reports whether it is within the limit
func (fw *FixedWindow) Allow(ctx context.Context, caller string) (bool, error) {
	if fw.maxRequests <= 0 {
		return true, nil
	}

	key := fw.Key(caller)

	pipe := fw.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, fw.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}

	return incr.Val() <= int64(fw.maxRequests), nil
}

// Remaining returns how many requests caller has left in the current window
func (fw *FixedWindow) Remaining(ctx context.Context, caller string) (int, error) {
	used, err := fw.client.Get(ctx, fw.Key(caller)).Int()
	if err == redis.Nil {
		return fw.maxRequests, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get request count: %w", err)
	}

	if left := fw.maxRequests - used; left > 0 {
		return left, nil
	}
	return 0, nil
}
