// This is the main entry point of the Shopfront application.
// It loads configuration, opens the credential store, wires services and handlers
// into the HTTP router, and runs the server until SIGINT/SIGTERM, then shuts down gracefully.
//
// @title Shopfront API
// @version 1.0
// @description Minimal storefront API: registration, login and a token-gated product catalog.
// @contact.name API Support
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/user/shopfront-go/auth"
	"github.com/user/shopfront-go/background"
	"github.com/user/shopfront-go/config"
	"github.com/user/shopfront-go/db"
	"github.com/user/shopfront-go/logging"
	"github.com/user/shopfront-go/ratelimit"
	"github.com/user/shopfront-go/server"
	"github.com/user/shopfront-go/users"
)

func main() {
	app := &cli.App{
		Name:  "shopfront",
		Usage: "storefront API with registration, login and a token-gated catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading configuration",
			},
		},
		Before: func(c *cli.Context) error {
			// A missing .env is normal outside development.
			_ = godotenv.Load(c.String("env-file"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "listen port, overrides PORT",
					},
					&cli.BoolFlag{
						Name:    "migrate",
						Usage:   "apply database migrations before serving (postgres store only)",
						EnvVars: []string{"DB_AUTO_MIGRATE"},
					},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, zerolog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logging.New(cfg.Log, os.Stdout), nil
}

func migrate(c *cli.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		return fmt.Errorf("migrate requires STORE_DRIVER=%s, got %s", config.StoreDriverPostgres, cfg.Store.Driver)
	}
	return db.RunMigrations(cfg.DB, log)
}

func serve(c *cli.Context) error {
	ctx := c.Context

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if port := c.String("port"); port != "" {
		cfg.Server.Port = port
	}

	store, closeStore, err := openStore(ctx, cfg, c.Bool("migrate"), log)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter, err := ratelimit.New(ctx, cfg.Throttle)
	if err != nil {
		return fmt.Errorf("failed to create login limiter: %w", err)
	}
	if limiter != nil {
		defer limiter.Close()
		log.Info().Int("max_attempts", cfg.Throttle.MaxAttempts).Dur("window", cfg.Throttle.Window).
			Bool("redis", cfg.Throttle.RedisURL != "").Msg("login throttling enabled")
	}

	// Redis expires its own keys; the in-memory limiter needs sweeping.
	stopBackground := make(chan struct{})
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		wg := background.StartPruner("login-throttle-pruner", mem, cfg.Throttle.Window, stopBackground, log)
		defer wg.Wait()
	}
	defer close(stopBackground)

	authService := auth.NewAuthService(store, *cfg.Auth)
	router := server.NewRouter(server.Deps{
		Auth:         authService,
		Store:        store,
		Limiter:      limiter,
		Logger:       log,
		TrustedProxy: cfg.Server.TrustedProxy,
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped gracefully")
	return nil
}

// openStore builds the credential store selected by STORE_DRIVER.
// The returned func releases its resources.
func openStore(ctx context.Context, cfg *config.AppConfig, runMigrations bool, log zerolog.Logger) (users.Store, func(), error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory credential store; users are lost on restart")
		return users.NewMemoryStore(), func() {}, nil
	}

	pool, err := db.NewDBPool(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnableExtensions(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if runMigrations {
		if err := db.RunMigrations(cfg.DB, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	return users.NewPostgresStoreFromPool(pool), pool.Close, nil
}
