// Package db provides database connectivity and migration functionality for the shopfront application.
// It handles establishing the pgx connection pool, enabling required PostgreSQL
// extensions, and running schema migrations with golang-migrate.
package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	// `time` is used for setting timeouts and connection pool configurations.
	"time"

	// `golang-migrate` applies the versioned SQL files under ./migrations.
	"github.com/golang-migrate/migrate/v4"
	// The postgres database driver and the file source register themselves on import.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	// `lib/pq` is the database/sql driver golang-migrate's postgres driver talks through.
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/user/shopfront-go/apperror"
	"github.com/user/shopfront-go/config"
)

const (
	maxConnIdleTime = 10 * time.Minute
	maxConnLifetime = 30 * time.Minute
)

// NewDBPool establishes the application's PostgreSQL connection pool.
// The pool is pinged before it is returned so a bad DSN fails at startup
// instead of on the first request.
func NewDBPool(ctx context.Context, cfg *config.PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := poolConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	// Bound pool creation so an unreachable database cannot block startup forever.
	createCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(createCtx, poolConfig)
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error creating pgxpool for database %s", cfg.DBName), err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close() // Clean up on connection failure
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error connecting to the database %s with pgxpool", cfg.DBName), err)
	}

	return pool, nil
}

// poolConfigFor turns PoolConfig into a pgxpool.Config.
func poolConfigFor(cfg *config.PoolConfig) (*pgxpool.Config, error) {
	dsn := dsnURL(cfg)
	q := dsn.Query()
	q.Set("pool_max_conns", strconv.Itoa(cfg.MaxSize))
	dsn.RawQuery = q.Encode()

	poolConfig, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error parsing DSN for database %s", cfg.DBName), err)
	}

	poolConfig.MaxConns = int32(cfg.MaxSize)
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	poolConfig.MaxConnLifetime = maxConnLifetime

	return poolConfig, nil
}

// getDSN constructs a DSN string from PoolConfig, suitable for golang-migrate.
func getDSN(cfg *config.PoolConfig) string {
	return dsnURL(cfg).String()
}

// dsnURL escapes credentials, so passwords containing '@', '/' or ':' survive.
func dsnURL(cfg *config.PoolConfig) *url.URL {
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=disable",
	}
}

// EnableExtensions enables the PostgreSQL extensions the schema relies on.
// pgcrypto provides gen_random_uuid() on servers older than 13.
func EnableExtensions(ctx context.Context, pool *pgxpool.Pool) error {
	extensions := []string{"pgcrypto"}

	for _, ext := range extensions {
		// `CREATE EXTENSION IF NOT EXISTS` is idempotent.
		query := fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s;", ext)

		execCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := pool.Exec(execCtx, query)
		cancel()
		if err != nil {
			return apperror.NewDatabaseError(fmt.Sprintf("failed to create extension %s", ext), err)
		}
	}

	return nil
}

// RunMigrations applies any pending migrations from migrationsPath.
// Files follow golang-migrate naming: {version}_{title}.up.sql / .down.sql.
func RunMigrations(cfg *config.PoolConfig, log zerolog.Logger) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, getDSN(cfg))
	if err != nil {
		return apperror.NewMigrationError("failed to create migrator", err)
	}
	// m.Close() returns two errors, one for the source and one for the database.
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source_error", srcErr).AnErr("database_error", dbErr).Msg("error closing migrator")
		}
	}()

	// `migrate.ErrNoChange` only means the schema is already current.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to run migrations", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return apperror.NewMigrationError("failed to read migration version", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("database schema is up to date")

	return nil
}
