package ratelimit

import (
	"context"
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryLimiter keeps attempt counters in process memory.
type MemoryLimiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewMemoryLimiter creates a MemoryLimiter.
func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		attempts:    make(map[string]*attemptState),
	}
}

func (m *MemoryLimiter) Check(_ context.Context, key string) (time.Duration, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[key]
	if !ok {
		return 0, nil
	}
	now := m.now()
	if !now.Before(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

func (m *MemoryLimiter) RecordFailure(_ context.Context, key string) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[key]
	if !ok || (now.Sub(state.firstAttempt) > m.window && !now.Before(state.lockedUntil)) {
		state = &attemptState{firstAttempt: now}
		m.attempts[key] = state
	}

	state.count++
	if state.count >= m.maxAttempts {
		state.lockedUntil = now.Add(m.window)
		state.count = m.maxAttempts
	}

	return m.maxAttempts - state.count, nil
}

func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, key)
	return nil
}

// Prune removes keys whose window and lock have both run out.
func (m *MemoryLimiter) Prune() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	removed := 0
	for key, state := range m.attempts {
		if now.Sub(state.firstAttempt) > m.window && !now.Before(state.lockedUntil) {
			delete(m.attempts, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryLimiter) Close() error { return nil }
