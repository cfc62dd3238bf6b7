package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "authcore:rl:"

// RateStore is a fixed-window counter shared by every instance pointing at
// the same Redis. Key format: authcore:rl:<key>
type RateStore struct {
	client *redis.Client
}

// NewRateStore wraps the given Redis client.
func NewRateStore(client *redis.Client) *RateStore {
	return &RateStore{client: client}
}

// Increment bumps the counter for key and returns the new count together with
// the time left in the current window. The window starts at the first hit.
func (s *RateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	k := rateKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("rate increment: %w", err)
	}

	left := ttl.Val()
	if left < 0 {
		left = window
	}
	return int(incr.Val()), left, nil
}

// Ping reports whether the backing server answers.
func (s *RateStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.client)
}

// Close releases the client connection pool.
func (s *RateStore) Close() error {
	return s.client.Close()
}
