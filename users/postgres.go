package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// PostgresStore stores users in the `users` table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing sqlx handle. Tests pass one built on sqlmock.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreFromPool exposes the shared pgx pool as a database/sql handle
// so queries can use sqlx struct scanning while connections stay pooled by pgx.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return NewPostgresStore(sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"))
}

// Create inserts a user row. The id and created_at columns are filled by the database.
func (s *PostgresStore) Create(ctx context.Context, user *User) (*User, error) {
	query := `INSERT INTO users (username, email, password)
              VALUES ($1, $2, $3)
              RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query, user.Username, user.Email, user.HashedPassword).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error inserting user: %w", err)
	}

	return user, nil
}

// FindByEmail returns the earliest row with the given email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, username, email, password, created_at
              FROM users
              WHERE email = $1
              ORDER BY created_at, id
              LIMIT 1`

	var user User
	if err := s.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error selecting user by email: %w", err)
	}

	return &user, nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
