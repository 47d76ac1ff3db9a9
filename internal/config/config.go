package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/contentguard/contentguard/internal/model"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the access-control service.
// Environment variables are automatically parsed from the CONTENT_GUARD_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// DBDriver selects the store backend: sqlite or postgres ("auto" derives
	// postgres when a DSN is present, sqlite otherwise).
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/contentguard.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Membership resolution: per-category recursion switches. When disabled
	// for a category only direct assignments count.
	LockRecursiveTerms bool `envconfig:"LOCK_RECURSIVE_TERMS" default:"true"`
	LockRecursivePosts bool `envconfig:"LOCK_RECURSIVE_POSTS" default:"true"`
	LockRecursiveUsers bool `envconfig:"LOCK_RECURSIVE_USERS" default:"true"`

	// MaxTreeDepth bounds ancestor walks; deeper chains are treated as a
	// misconfigured content tree.
	MaxTreeDepth int `envconfig:"MAX_TREE_DEPTH" default:"64"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults derives DBDriver when set to "auto" and validates the result.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}

	allowedDB := map[string]bool{"sqlite": true, "postgres": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER is postgres but POSTGRES_DSN is empty")
	}
	if c.MaxTreeDepth <= 0 {
		return fmt.Errorf("MAX_TREE_DEPTH must be positive, got %d", c.MaxTreeDepth)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: CONTENT_GUARD_HTTP_PORT, CONTENT_GUARD_DB_DRIVER.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CONTENT_GUARD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Bool("lock_recursive_terms", cfg.LockRecursiveTerms).
		Bool("lock_recursive_posts", cfg.LockRecursivePosts).
		Bool("lock_recursive_users", cfg.LockRecursiveUsers).
		Int("max_tree_depth", cfg.MaxTreeDepth).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		DBDriver:                  "sqlite",
		SQLitePath:                "",
		HTTPPort:                  8080,
		LockRecursiveTerms:        true,
		LockRecursivePosts:        true,
		LockRecursiveUsers:        true,
		MaxTreeDepth:              64,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 5,
	}
}

// LockRecursive reports whether recursive expansion is enabled for the kind.
// Roles are leaves and pluggable kinds own their recursion, so only the
// hierarchical and user categories are switchable.
func (c *Config) LockRecursive(kind model.ObjectKind) bool {
	switch kind {
	case model.KindTerm:
		return c.LockRecursiveTerms
	case model.KindPost:
		return c.LockRecursivePosts
	case model.KindUser:
		return c.LockRecursiveUsers
	default:
		return false
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
