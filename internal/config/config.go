// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTAccessSecret signs access tokens (HS256). Required; startup fails when unset.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens (HS256). Required; startup fails when unset.
	// Access and refresh secrets must differ so one class of token can never pass
	// verification against the other class's key.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim (e.g. "resqride-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// AccessTokenTTL is the access token lifetime. Supports Go durations plus a
	// "d" suffix for days (e.g. "1h", "1d").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "7d").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// BlacklistWindow is how long a revoked token stays in the blacklist (e.g. "7d").
	BlacklistWindow string `mapstructure:"BLACKLIST_WINDOW"`
	// SessionRetention is how long an idle session survives before the sweep deletes it (e.g. "7d").
	SessionRetention string `mapstructure:"SESSION_RETENTION"`
	// SweepInterval is how often the blacklist and session sweeps run (e.g. "1h").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// CORSOrigins is a comma-separated list of allowed origins ("*" allows all).
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// IdentityProviderURL is the base URL of the external identity provider
	// (code exchange, token validation, logout notification). Empty disables
	// social login.
	IdentityProviderURL string `mapstructure:"IDENTITY_PROVIDER_URL"`
	// IdentityProviderClientID is the OAuth client id for the code exchange.
	IdentityProviderClientID string `mapstructure:"IDENTITY_PROVIDER_CLIENT_ID"`
	// IdentityProviderClientSecret is the OAuth client secret for the code exchange.
	IdentityProviderClientSecret string `mapstructure:"IDENTITY_PROVIDER_CLIENT_SECRET"`

	// Security event pipeline (optional). When Kafka brokers are set, critical
	// security events are also produced to Kafka for the worker to ship.
	// SecurityKafkaBrokers is a comma-separated broker list (e.g. "localhost:9092").
	SecurityKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityKafkaTopic is the Kafka topic for security events (default resqride-security).
	SecurityKafkaTopic string `mapstructure:"SECURITY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the security event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL used by cmd/worker (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// OTLPEndpoint is the OTLP gRPC endpoint for the security event log exporter.
	// Empty disables the OTel pipeline.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
// Both JWT secrets are required: a missing or shared secret is a configuration
// error and startup must fail rather than fall back to a weak default.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "resqride-auth")
	v.SetDefault("ACCESS_TOKEN_TTL", "1h")
	v.SetDefault("REFRESH_TOKEN_TTL", "7d")
	v.SetDefault("BLACKLIST_WINDOW", "7d")
	v.SetDefault("SESSION_RETENTION", "7d")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("IDENTITY_PROVIDER_URL", "")
	v.SetDefault("IDENTITY_PROVIDER_CLIENT_ID", "")
	v.SetDefault("IDENTITY_PROVIDER_CLIENT_SECRET", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_KAFKA_TOPIC", "resqride-security")
	v.SetDefault("KAFKA_GROUP_ID", "resqride-security-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, errors.New("config: JWT_ACCESS_SECRET must be set")
	}
	if cfg.JWTRefreshSecret == "" {
		return nil, errors.New("config: JWT_REFRESH_SECRET must be set")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	for _, ttl := range []struct{ name, value string }{
		{"ACCESS_TOKEN_TTL", cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL},
		{"BLACKLIST_WINDOW", cfg.BlacklistWindow},
		{"SESSION_RETENTION", cfg.SessionRetention},
		{"SWEEP_INTERVAL", cfg.SweepInterval},
	} {
		if _, err := ParseTTL(ttl.value); err != nil {
			return nil, fmt.Errorf("config: %s: %w", ttl.name, err)
		}
	}

	return &cfg, nil
}

// ParseTTL parses a lifetime string. Accepts anything time.ParseDuration does,
// plus bare seconds ("300") and a "d" suffix for days ("7d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}

// AccessTTL returns the parsed access token lifetime. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := ParseTTL(c.AccessTokenTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// RefreshTTL returns the parsed refresh token lifetime. Returns 7d if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := ParseTTL(c.RefreshTokenTTL)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// BlacklistTTL returns the parsed blacklist entry window. Returns 7d if unset or invalid.
func (c *Config) BlacklistTTL() time.Duration {
	d, err := ParseTTL(c.BlacklistWindow)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// RetentionTTL returns the parsed idle-session retention window. Returns 7d if unset or invalid.
func (c *Config) RetentionTTL() time.Duration {
	d, err := ParseTTL(c.SessionRetention)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// SweepEvery returns the parsed sweep interval. Returns 1h if unset or invalid.
func (c *Config) SweepEvery() time.Duration {
	d, err := ParseTTL(c.SweepInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// CORSOriginList returns the allowed origins from the comma-separated config.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SecurityKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// A non-empty list enables the Kafka security event producer.
func (c *Config) SecurityKafkaBrokersList() []string {
	if c == nil || c.SecurityKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.SecurityKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
