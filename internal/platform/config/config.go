// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenService) via constructors.
  - Zero Hidden State: No global variables are used to store config; nothing
    downstream reads os.Getenv directly.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/duccodon/finai/internal/platform/constants"
)

// # Configuration Schema

// Config holds all runtime configuration for the Finai auth server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL) — the credential store
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis) — the session store substrate
	RedisURL string `env:"REDIS_URL,required"`

	// Access-token signing
	JWTSecret      string        `env:"JWT_SECRET,required"`
	AccessTokenTTL time.Duration `env:"JWT_EXPIRES_IN" envDefault:"15m"`

	// Session lifetimes
	RefreshTTLDays  int `env:"REFRESH_TTL_DAYS"  envDefault:"30"`
	ResetTTLMinutes int `env:"RESET_TTL_MINUTES" envDefault:"15"`

	// Refresh session cookie
	CookieName string `env:"COOKIE_NAME" envDefault:"Host-finai_rft"`

	// ExposeResetSessionID controls whether POST /forgot-password echoes the
	// reset session id in the response body. The historical contract did;
	// that defeats mailbox-ownership verification, so the default is off and
	// the id travels only in the reset email.
	ExposeResetSessionID bool `env:"EXPOSE_RESET_SESSION_ID" envDefault:"false"`

	// Reset email delivery (SMTP). Leave SMTPHost empty in development to
	// log reset links instead of sending them.
	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`

	// AppURL is the public frontend origin used to build reset links.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:5173"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.CookieName == "" {
		cfg.CookieName = constants.DefaultCookieName
	}

	return cfg, nil
}

// RefreshTTL returns the refresh session lifetime as a duration.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// ResetTTL returns the password-reset session lifetime as a duration.
func (c *Config) ResetTTL() time.Duration {
	return time.Duration(c.ResetTTLMinutes) * time.Minute
}

// AllowedExtraOrigins returns the comma-separated EXTRA_ORIGINS list as a slice.
func (c *Config) AllowedExtraOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	parts := strings.Split(c.ExtraOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
