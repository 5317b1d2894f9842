package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptsKeyPrefix = "shopfront:login_attempts:"
	lockKeyPrefix     = "shopfront:login_lock:"
)

// RedisLimiter keeps attempt counters in Redis so several instances share them.
// The counter expires with the window; reaching the limit sets a lock key with the same TTL.
type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedisLimiter creates a RedisLimiter on an existing client. Close closes the client.
func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

func (l *RedisLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.PTTL(ctx, lockKeyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read lock ttl: %w", err)
	}
	// Missing keys report a negative TTL.
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) (int, error) {
	attemptsKey := attemptsKeyPrefix + key

	count, err := l.client.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count attempt: %w", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, attemptsKey, l.window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set attempt window: %w", err)
		}
	}

	if int(count) >= l.maxAttempts {
		_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, lockKeyPrefix+key, 1, l.window)
			pipe.Del(ctx, attemptsKey)
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to lock key: %w", err)
		}
		return 0, nil
	}

	return l.maxAttempts - int(count), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, attemptsKeyPrefix+key, lockKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
