// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. In development a local
.env file is loaded first through 'joho/godotenv'; real environment variables
always win over the file.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, session signer) via constructors.
  - Zero Hidden State: The signing secret is never stored in a package variable.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// MinSessionSecretLength is the minimum accepted HMAC key size in bytes.
const MinSessionSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the Palm API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"5"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis), used for the session revocation list
	RedisURL string `env:"REDIS_URL,required"`

	// Session signing
	SessionSecret string        `env:"SESSION_SECRET,required"`
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"24h"`
	SessionIssuer string        `env:"SESSION_ISSUER" envDefault:"palm"`

	// Credentials
	BcryptCost    int           `env:"BCRYPT_COST"     envDefault:"10"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	// Rate limiting (requests per second per client IP)
	RateLimitRPS       float64 `env:"RATE_LIMIT_RPS"        envDefault:"100"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST"      envDefault:"150"`
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS"   envDefault:"0.2"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	// Outbound mail. A Resend API key wins over SMTP; with neither, the
	// logging sender is used.
	ResendAPIKey string `env:"RESEND_API_KEY"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"     envDefault:"PALM Mobile <no-reply@palm.app>"`

	// Cross-Origin Resource Sharing, comma separated
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// TrustedProxies lists the reverse proxies (addresses or CIDR ranges, comma
	// separated) whose X-Forwarded-For and X-Real-IP headers are believed.
	// Empty means the socket peer is always the client.
	TrustedProxies string `env:"TRUSTED_PROXIES"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// A missing .env file is normal outside development
	_ = godotenv.Load()

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("config: SESSION_SECRET must be at least %d bytes", MinSessionSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("config: SESSION_TTL must be positive"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("config: RESET_TOKEN_TTL must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("config: BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}

	return errors.Join(errs...)
}

// AllowedOrigins splits CORSAllowedOrigins into a clean slice.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxyList splits TrustedProxies into a clean slice.
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ResendEnabled reports whether outbound mail should go through Resend.
func (c *Config) ResendEnabled() bool {
	return c.ResendAPIKey != ""
}

// SMTPEnabled reports whether outbound mail should go through SMTP.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
