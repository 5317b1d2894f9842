// Package ratelimit throttles repeated failed logins per client.
// After MaxAttempts failures inside Window the client is locked out for Window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/shopfront-go/config"
)

// Limiter tracks failed login attempts by key (the client address).
type Limiter interface {
	// Check returns how long the key stays locked; zero means the attempt may proceed.
	Check(ctx context.Context, key string) (time.Duration, error)
	// RecordFailure counts a failed attempt and returns the attempts left before lockout.
	RecordFailure(ctx context.Context, key string) (int, error)
	// Reset clears the key after a successful login.
	Reset(ctx context.Context, key string) error
	Close() error
}

// New builds the limiter described by cfg. It returns nil when throttling is disabled.
// A Redis URL selects the shared Redis limiter, otherwise state is kept in memory.
func New(ctx context.Context, cfg *config.ThrottleConfig) (Limiter, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.Window <= 0 {
		return nil, errors.New("throttle window must be positive")
	}
	if cfg.RedisURL == "" {
		return NewMemoryLimiter(cfg.MaxAttempts, cfg.Window), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisLimiter(client, cfg.MaxAttempts, cfg.Window), nil
}
