// Package config provides configuration management for the shopfront application.
// It handles loading and validation of configuration values from environment variables,
// with support for required variables, default values, and collective error reporting.
// Everything that used to be a process-wide constant (listen port, signing secret,
// connection settings) is read here once and handed to the services that need it.
package config

import (
	"fmt"
	// `os` package provides operating system functionalities, like reading environment variables.
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/user/shopfront-go/apperror"
)

// Store drivers understood by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// PoolConfig represents configuration for the database connection pool.
type PoolConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MaxSize        int
	MigrationsPath string
}

// StoreConfig selects the credential store implementation.
type StoreConfig struct {
	Driver string // "postgres" or "memory"
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret     string        // Secret key for signing JWTs
	TokenDuration time.Duration // Lifetime of issued tokens
	Issuer        string        // `iss` claim
	BcryptCost    int           // Work factor for password hashing
}

// ThrottleConfig controls failed-login throttling. MaxAttempts == 0 disables it.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	RedisURL    string
}

// Enabled reports whether failed-login throttling is switched on.
func (c *ThrottleConfig) Enabled() bool {
	return c != nil && c.MaxAttempts > 0
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string // zerolog level name
	Format string // "console" or "json"
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string // Port for the HTTP server
	// TrustedProxy makes the router take the client address from
	// X-Forwarded-For / X-Real-IP. Only set it behind a proxy that overwrites them.
	TrustedProxy bool
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	DB       *PoolConfig
	Store    *StoreConfig
	Auth     *AuthConfig
	Throttle *ThrottleConfig
	Log      *LogConfig
	Server   *ServerConfig
}

// Helper function to get a required environment variable.
// Appends an error to the errors slice if the variable is not set.
func getRequiredEnv(key string, errors *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errors = append(*errors, fmt.Sprintf("missing required environment variable: %s", key))
		return "" // Return empty string, error is collected
	}
	return value
}

// Helper function to get an optional environment variable with a default string value.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get an optional environment variable parsed as an int.
// Uses defaultValue if not set or if parsing fails. Appends an error if parsing fails.
func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// Helper function to get an optional environment variable parsed as a bool ("true", "1", "false", ...).
func getOptionalEnvBool(key string, defaultValue bool, errors *[]string) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected boolean, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueBool
}

// Helper function to get an optional environment variable parsed as time.Duration.
// `time.ParseDuration` expects a string like "15m", "24h".
func getOptionalEnvDuration(key string, defaultValue time.Duration, errors *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the pool size between 5 and 100. Out-of-range values are clamped, not rejected.
func clampPoolSize(size int) int {
	if size < 5 {
		return 5
	}
	if size > 100 {
		return 100
	}
	return size
}

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
// It collects all errors encountered during loading and returns a single error if any exist.
func LoadConfig() (*AppConfig, error) {
	// `errors` slice collects all validation/parsing errors during config loading.
	var errors []string

	// Store selection comes first: database settings are only required for postgres.
	driver := strings.ToLower(getOptionalEnv("STORE_DRIVER", StoreDriverPostgres))
	switch driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid value for STORE_DRIVER: expected %q or %q, got '%s'", StoreDriverPostgres, StoreDriverMemory, driver))
	}

	dbConfig := &PoolConfig{
		Host:           getOptionalEnv("DB_HOST", "localhost"),
		Port:           getOptionalEnvInt("DB_PORT", 5432, &errors),
		MaxSize:        clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errors)),
		MigrationsPath: getOptionalEnv("DB_MIGRATIONS_PATH", "./migrations"),
	}
	if driver == StoreDriverPostgres {
		dbConfig.User = getRequiredEnv("DB_USER", &errors)
		dbConfig.Password = getRequiredEnv("DB_PASSWORD", &errors)
		dbConfig.DBName = getRequiredEnv("DB_NAME", &errors)
	}

	// Auth Configuration
	authConfig := &AuthConfig{
		JWTSecret:     getRequiredEnv("JWT_SECRET", &errors),
		TokenDuration: getOptionalEnvDuration("JWT_TOKEN_DURATION", 24*time.Hour, &errors),
		Issuer:        getOptionalEnv("JWT_ISSUER", "shopfront"),
		BcryptCost:    getOptionalEnvInt("BCRYPT_COST", 10, &errors),
	}
	if authConfig.BcryptCost < 4 || authConfig.BcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("invalid value for BCRYPT_COST: expected 4..31, got %d", authConfig.BcryptCost))
	}
	if authConfig.TokenDuration <= 0 {
		errors = append(errors, "invalid value for JWT_TOKEN_DURATION: must be positive")
	}

	throttleConfig := &ThrottleConfig{
		MaxAttempts: getOptionalEnvInt("LOGIN_MAX_ATTEMPTS", 0, &errors),
		Window:      getOptionalEnvDuration("LOGIN_ATTEMPT_WINDOW", 15*time.Minute, &errors),
		RedisURL:    getOptionalEnv("REDIS_URL", ""),
	}
	if throttleConfig.MaxAttempts < 0 {
		errors = append(errors, fmt.Sprintf("invalid value for LOGIN_MAX_ATTEMPTS: must not be negative, got %d", throttleConfig.MaxAttempts))
	}

	logConfig := &LogConfig{
		Level:  strings.ToLower(getOptionalEnv("LOG_LEVEL", "info")),
		Format: strings.ToLower(getOptionalEnv("LOG_FORMAT", "console")),
	}
	if logConfig.Format != "console" && logConfig.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid value for LOG_FORMAT: expected console or json, got '%s'", logConfig.Format))
	}

	// Server Configuration
	// Port stays a string because it's used directly in the listen address (":3000").
	serverConfig := &ServerConfig{
		Port:         getOptionalEnv("PORT", "3000"),
		TrustedProxy: getOptionalEnvBool("TRUSTED_PROXY", false, &errors),
	}

	// If any errors were collected during loading, return a single aggregated error message.
	if len(errors) > 0 {
		return nil, apperror.NewConfigError(fmt.Sprintf("configuration errors:\n- %s", strings.Join(errors, "\n- ")), nil)
	}

	return &AppConfig{
		DB:       dbConfig,
		Store:    &StoreConfig{Driver: driver},
		Auth:     authConfig,
		Throttle: throttleConfig,
		Log:      logConfig,
		Server:   serverConfig,
	}, nil
}
