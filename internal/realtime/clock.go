package realtime

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Clock supplies the backend's authoritative time.
type Clock interface {
	Now(ctx context.Context) time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now(context.Context) time.Time {
	return time.Now().UTC()
}

// RedisClock reads the Redis server clock so every node agrees on ordering.
type RedisClock struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisClock constructs a clock backed by the Redis TIME command.
func NewRedisClock(client *redis.Client, logger zerolog.Logger) *RedisClock {
	return &RedisClock{client: client, logger: logger.With().Str("component", "redis_clock").Logger()}
}

// Now returns the Redis server time, falling back to the local clock when Redis is unreachable.
func (c *RedisClock) Now(ctx context.Context) time.Time {
	if c.client != nil {
		now, err := c.client.Time(ctx).Result()
		if err == nil {
			return now.UTC()
		}
		c.logger.Warn().Err(err).Msg("redis time unavailable, using local clock")
	}
	return time.Now().UTC()
}
