// Package config loads buildcfg-server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Proxy     ProxyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds snapshot storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Type string // "none" or "api-key"
}

// Enabled reports whether write routes require an API key.
func (a AuthConfig) Enabled() bool {
	return a.Type == "api-key"
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig controls the /metrics endpoint
type MetricsConfig struct {
	Enabled bool
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// LookupFunc reads one setting, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom loads configuration through lookup.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	e := env(lookup)
	cfg := &Config{
		Server: ServerConfig{
			Port:           e.getInt("PORT", 8080),
			Host:           e.get("HOST", "0.0.0.0"),
			ReadTimeout:    e.getInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   e.getInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    e.getInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: e.getInt("SERVER_REQUEST_TIMEOUT", 30),
		},
		Storage: StorageConfig{
			Type: e.get("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: e.get("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: e.get("SQLITE_PATH", "./data/buildcfg.db"),
			},
		},
		Auth: AuthConfig{
			Type: e.get("AUTH_TYPE", "none"),
		},
		Logging: LoggingConfig{
			Level:  e.get("LOG_LEVEL", "info"),
			Format: e.get("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: e.getBool("METRICS_ENABLED", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:        e.getBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: e.getInt("RATE_LIMIT_RPM", 300),
			BurstSize:      e.getInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: e.getInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			FilterEnabled: e.getBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: e.getInt("SECURITY_MAX_BODY_SIZE_MB", 5),
		},
		Proxy: ProxyConfig{
			TrustProxy:     e.getBool("TRUST_PROXY", false),
			TrustedProxies: e.getStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if _, explicit := lookup("STORAGE_TYPE"); !explicit && cfg.Storage.Postgres.URL != "" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("STORAGE_TYPE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q (want sqlite or postgres)", c.Storage.Type)
	}
	switch c.Auth.Type {
	case "none", "api-key":
	default:
		return fmt.Errorf("unknown AUTH_TYPE %q (want none or api-key)", c.Auth.Type)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (want json or text)", c.Logging.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	return nil
}

type env LookupFunc

func (e env) get(key, defaultValue string) string {
	if value, ok := e(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (e env) getInt(key string, defaultValue int) int {
	if value, ok := e(key); ok && value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value, ok := e(key); ok && value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func (e env) getStringSlice(key string, defaultValue []string) []string {
	if value, ok := e(key); ok && value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
