// Package ratelimit provides a Redis-backed fixed-window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "ratelimit:"

// Limiter counts requests per key in fixed windows shared by every
// instance connected to the same Redis.
type Limiter struct {
	client *redis.Client
	now    func() time.Time
}

// New creates a limiter on top of an existing client.
func New(client *redis.Client) *Limiter {
	return &Limiter{client: client, now: time.Now}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", addr).Int("db", db).Msg("Connected to Redis")
	return client, nil
}

// Result describes a single limiter decision.
type Result struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Allow records one hit for key and reports whether it fits in limit hits
// per window. A non-positive limit always allows.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 {
		return Result{Allowed: true}, nil
	}

	now := l.now()
	bucket := now.Truncate(window)
	redisKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, bucket.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to count request: %w", err)
	}

	count := incr.Val()
	if count > int64(limit) {
		return Result{
			Allowed:    false,
			Count:      count,
			RetryAfter: bucket.Add(window).Sub(now),
		}, nil
	}

	return Result{Allowed: true, Count: count}, nil
}
