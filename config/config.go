package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// StoreKind selects the repository backend.
type StoreKind string

const (
	// StoreMemory keeps all lab data in process memory, seeded at startup.
	StoreMemory StoreKind = "memory"
	// StorePostgres uses the PostgreSQL repositories.
	StorePostgres StoreKind = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreKind.
func (s *StoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "postgres":
		*s = StoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreKind: %q (valid options: memory, postgres)", v)
	}
}

// SessionStoreKind selects where sessions live.
type SessionStoreKind string

const (
	// SessionStoreMemory keeps sessions in process memory.
	SessionStoreMemory SessionStoreKind = "memory"
	// SessionStoreRedis keeps sessions in Redis.
	SessionStoreRedis SessionStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (s *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*s = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStoreKind: %q (valid options: memory, redis)", v)
	}
}

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication and session configuration
//   - database.go: PostgreSQL and Redis configuration
//   - http.go: HTTP server, rate limit and CORS configuration
//   - logging.go: Log level and handler format
//   - observability.go: Metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Store selects the repository backend.
	Store StoreKind `env:"STORE" envDefault:"memory"`

	// SessionStore selects the session backend.
	SessionStore SessionStoreKind `env:"SESSION_STORE" envDefault:"memory"`

	// SeedOnStart loads the lab fixtures at startup. Seeding skips data that already exists.
	SeedOnStart bool `env:"SEED_ON_START" envDefault:"true"`

	Log LogConfig

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Postgres.Sanitize()
	c.Auth.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// Validate reports combinations that cannot start.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Log.validate(); err != nil {
		errs = append(errs, err)
	}
	devSSO := strings.TrimSpace(c.Auth.OAuth.DevEmail) != ""
	if c.Auth.Mode == AuthModeOAuth && strings.TrimSpace(c.Auth.OAuth.DiscoveryURL) == "" && !devSSO {
		errs = append(errs, errors.New("OAUTH_DISCOVERY_URL is required when AUTH_MODE=oauth"))
	}
	if devSSO && !c.IsDev {
		errs = append(errs, errors.New("OAUTH_DEV_EMAIL requires DEV=true"))
	}
	if c.Auth.TrustUserHeader && !c.IsDev {
		errs = append(errs, errors.New("AUTH_TRUST_USER_HEADER requires DEV=true"))
	}
	if strings.TrimSpace(c.HTTP.FilesBaseDir) == "" {
		errs = append(errs, errors.New("FILES_BASE_DIR cannot be empty"))
	}
	return errors.Join(errs...)
}

// NeedsPostgres reports whether a database connection is required.
func (c *AppConfig) NeedsPostgres() bool { return c.Store == StorePostgres }

// NeedsRedis reports whether a Redis connection is required.
func (c *AppConfig) NeedsRedis() bool { return c.SessionStore == SessionStoreRedis }

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
