package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps users in process memory. It backs STORE_DRIVER=memory and the tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users []User // insertion order; FindByEmail relies on it
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Create stores a copy of user with a fresh UUID.
func (s *MemoryStore) Create(ctx context.Context, user *User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	s.users = append(s.users, *user)

	return user, nil
}

// FindByEmail returns a copy of the earliest user with the given email.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// ListByEmail returns every record with the given email, oldest first.
// It is not part of Store; it exists so tests and debugging can inspect
// duplicate registrations that FindByEmail hides.
func (s *MemoryStore) ListByEmail(email string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []User
	for _, u := range s.users {
		if u.Email == email {
			out = append(out, u)
		}
	}
	return out
}
