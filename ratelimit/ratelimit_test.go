package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/shopfront-go/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryLimiter(max int, window time.Duration) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(max, window)
	l.now = clock.now
	return l, clock
}

func TestMemoryLimiter_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(3, time.Minute)

	remaining, err := l.RecordFailure(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	_, _ = l.RecordFailure(ctx, "10.0.0.1")

	retry, err := l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, retry)

	remaining, _ = l.RecordFailure(ctx, "10.0.0.1")
	assert.Equal(t, 0, remaining)

	retry, err = l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, retry)

	clock.advance(40 * time.Second)
	retry, _ = l.Check(ctx, "10.0.0.1")
	assert.Equal(t, 20*time.Second, retry)

	other, _ := l.Check(ctx, "10.0.0.2")
	assert.Zero(t, other)
}

func TestMemoryLimiter_LockExpires(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(1, time.Minute)

	_, _ = l.RecordFailure(ctx, "k")
	clock.advance(time.Minute)

	retry, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, retry)

	remaining, _ := l.RecordFailure(ctx, "k")
	assert.Equal(t, 0, remaining, "a fresh window starts counting from one")
}

func TestMemoryLimiter_WindowResetsCount(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(3, time.Minute)

	_, _ = l.RecordFailure(ctx, "k")
	_, _ = l.RecordFailure(ctx, "k")
	clock.advance(2 * time.Minute)

	remaining, _ := l.RecordFailure(ctx, "k")
	assert.Equal(t, 2, remaining)
}

func TestMemoryLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestMemoryLimiter(1, time.Minute)

	_, _ = l.RecordFailure(ctx, "k")
	require.NoError(t, l.Reset(ctx, "k"))

	retry, _ := l.Check(ctx, "k")
	assert.Zero(t, retry)
}

func TestMemoryLimiter_Prune(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(2, time.Minute)

	_, _ = l.RecordFailure(ctx, "stale")
	clock.advance(30 * time.Second)
	_, _ = l.RecordFailure(ctx, "locked")
	_, _ = l.RecordFailure(ctx, "locked")
	clock.advance(31 * time.Second)
	_, _ = l.RecordFailure(ctx, "fresh")

	assert.Equal(t, 1, l.Prune())
	assert.Len(t, l.attempts, 2)
	assert.Contains(t, l.attempts, "locked")
	assert.Contains(t, l.attempts, "fresh")
}

func newTestRedisLimiter(t *testing.T, max int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLimiter(client, max, window)
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestRedisLimiter_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestRedisLimiter(t, 2, time.Minute)

	remaining, err := l.RecordFailure(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	retry, err := l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, retry)

	remaining, err = l.RecordFailure(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	retry, err = l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Greater(t, retry, 50*time.Second)
	assert.LessOrEqual(t, retry, time.Minute)

	mr.FastForward(time.Minute + time.Second)
	retry, err = l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, retry)
}

func TestRedisLimiter_AttemptCounterExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestRedisLimiter(t, 2, time.Minute)

	_, err := l.RecordFailure(ctx, "k")
	require.NoError(t, err)
	assert.True(t, mr.Exists(attemptsKeyPrefix+"k"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(attemptsKeyPrefix+"k"))

	remaining, err := l.RecordFailure(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestRedisLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestRedisLimiter(t, 1, time.Minute)

	_, err := l.RecordFailure(ctx, "k")
	require.NoError(t, err)
	require.True(t, mr.Exists(lockKeyPrefix+"k"))

	require.NoError(t, l.Reset(ctx, "k"))
	assert.False(t, mr.Exists(lockKeyPrefix+"k"))
}

func TestRedisLimiter_ErrorsWhenServerDown(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := l.Check(context.Background(), "k")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	l, err := New(ctx, &config.ThrottleConfig{MaxAttempts: 0})
	require.NoError(t, err)
	assert.Nil(t, l)

	l, err = New(ctx, &config.ThrottleConfig{MaxAttempts: 3, Window: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)

	mr := miniredis.RunT(t)
	l, err = New(ctx, &config.ThrottleConfig{MaxAttempts: 3, Window: time.Minute, RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisLimiter{}, l)
	require.NoError(t, l.Close())

	_, err = New(ctx, &config.ThrottleConfig{MaxAttempts: 3, Window: time.Minute, RedisURL: "not a url"})
	assert.Error(t, err)

	_, err = New(ctx, &config.ThrottleConfig{MaxAttempts: 3})
	assert.Error(t, err)
}
