// Package users is the credential store: it persists user records
// (username, email, bcrypt hash) and looks them up by email.
// The store owns the records exclusively; nothing outside this package
// builds SQL against the users table.
package users

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByEmail when no record matches.
var ErrNotFound = errors.New("user not found")

// User represents a user in the system.
// The `db` tags map columns for sqlx; `json:"-"` keeps the hash out of any response.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Store persists and retrieves user records.
//
// Email is a lookup key but not a unique one: Create never rejects a duplicate
// email, and FindByEmail returns the earliest record carrying it.
type Store interface {
	// Create inserts the user and fills in the store-assigned ID and CreatedAt.
	Create(ctx context.Context, user *User) (*User, error)
	// FindByEmail returns the first record with the given email or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Pinger is implemented by stores backed by an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}
