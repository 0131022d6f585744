package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"parley-server"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"PARLEY_PORT" envDefault:"8480"`
	LogLevel        string        `env:"PARLEY_LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database (required, no default)
	DBPostgresqlDSN string `env:"DB_POSTGRESQL_DSN,notEmpty"`

	// Database Connection Pool
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Model catalog and provider credentials
	SettingsPath string `env:"PARLEY_SETTINGS_PATH" envDefault:"settings.yml"`

	// Conversation listing cache
	ListingCacheTTL time.Duration `env:"PARLEY_LISTING_CACHE_TTL" envDefault:"2m"`

	// Authentication. JWKS validation in real deployments; the HMAC secret
	// exists for local development only.
	AuthJWKSURL    string `env:"AUTH_JWKS_URL"`
	AuthIssuer     string `env:"AUTH_ISSUER"`
	AuthAudience   string `env:"AUTH_AUDIENCE"`
	AuthHMACSecret string `env:"AUTH_HMAC_SECRET"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.AuthJWKSURL = strings.TrimSpace(cfg.AuthJWKSURL)
	cfg.AuthIssuer = strings.TrimSpace(cfg.AuthIssuer)
	cfg.AuthHMACSecret = strings.TrimSpace(cfg.AuthHMACSecret)

	if cfg.AuthJWKSURL == "" && cfg.AuthHMACSecret == "" {
		return nil, fmt.Errorf("either AUTH_JWKS_URL or AUTH_HMAC_SECRET must be set")
	}
	if cfg.AuthJWKSURL != "" && cfg.AuthIssuer == "" {
		return nil, fmt.Errorf("AUTH_ISSUER is required when AUTH_JWKS_URL is set")
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
