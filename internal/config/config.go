// Package config provides configuration management for the edge gate.
// Settings are loaded from environment variables with sensible defaults;
// the site-lock flag can additionally be driven by a watched flags file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHTTPPort          = 8080
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultRateLimitRequests = 50
	DefaultRateLimitWindow   = 10 * time.Second
	DefaultSessionCookie     = "session_token"
	DefaultMetricsPath       = "/metrics"
)

// Rate limit store types.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreDisabled = "disabled"
)

// Config holds all configuration settings for the edge gate.
type Config struct {
	// Server settings
	HTTPPort        int           `json:"httpPort" yaml:"httpPort"`
	ReadTimeout     time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// Logging
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`
	LogOutput string `json:"logOutput" yaml:"logOutput"`

	// Session verification
	SessionSecret string `json:"-" yaml:"-"`
	SessionCookie string `json:"sessionCookie" yaml:"sessionCookie"`

	// Site lock. SiteLocked is the baseline read from the environment;
	// FlagsFile optionally points at a watched YAML file that overrides it
	// at runtime without a restart.
	SiteLocked bool   `json:"siteLocked" yaml:"siteLocked"`
	FlagsFile  string `json:"flagsFile" yaml:"flagsFile"`

	// Rate limiting
	RateLimitRequests int           `json:"rateLimitRequests" yaml:"rateLimitRequests"`
	RateLimitWindow   time.Duration `json:"rateLimitWindow" yaml:"rateLimitWindow"`
	RateLimitStore    string        `json:"rateLimitStore" yaml:"rateLimitStore"`
	RedisAddress      string        `json:"redisAddress" yaml:"redisAddress"`
	RedisToken        string        `json:"-" yaml:"-"`
	RedisDB           int           `json:"redisDB" yaml:"redisDB"`
	RedisPrefix       string        `json:"redisPrefix" yaml:"redisPrefix"`

	// Client IP extraction
	TrustedProxies []string `json:"trustedProxies" yaml:"trustedProxies"`

	// Metrics
	MetricsEnabled bool   `json:"metricsEnabled" yaml:"metricsEnabled"`
	MetricsPath    string `json:"metricsPath" yaml:"metricsPath"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		HTTPPort:          DefaultHTTPPort,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		LogLevel:          "info",
		LogFormat:         "json",
		LogOutput:         "stdout",
		SessionCookie:     DefaultSessionCookie,
		RateLimitRequests: DefaultRateLimitRequests,
		RateLimitWindow:   DefaultRateLimitWindow,
		RateLimitStore:    "",
		RedisPrefix:       "ratelimit:",
		MetricsEnabled:    true,
		MetricsPath:       DefaultMetricsPath,
	}
}

// FromEnv returns a Config populated from environment variables, falling
// back to defaults for anything unset.
func FromEnv() *Config {
	cfg := DefaultConfig()

	cfg.HTTPPort = getEnvInt("EDGEGATE_HTTP_PORT", cfg.HTTPPort)
	cfg.ReadTimeout = getEnvDuration("EDGEGATE_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("EDGEGATE_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("EDGEGATE_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("EDGEGATE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.LogLevel = getEnvOrDefault("EDGEGATE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("EDGEGATE_LOG_FORMAT", cfg.LogFormat)
	cfg.LogOutput = getEnvOrDefault("EDGEGATE_LOG_OUTPUT", cfg.LogOutput)

	cfg.SessionSecret = os.Getenv("EDGEGATE_SESSION_SECRET")
	cfg.SessionCookie = getEnvOrDefault("EDGEGATE_SESSION_COOKIE", cfg.SessionCookie)

	cfg.SiteLocked = getEnvBool("EDGEGATE_SITE_LOCKED", cfg.SiteLocked)
	cfg.FlagsFile = os.Getenv("EDGEGATE_FLAGS_FILE")

	cfg.RateLimitRequests = getEnvInt("EDGEGATE_RATE_LIMIT_REQUESTS", cfg.RateLimitRequests)
	cfg.RateLimitWindow = getEnvDuration("EDGEGATE_RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	cfg.RateLimitStore = getEnvOrDefault("EDGEGATE_RATE_LIMIT_STORE", cfg.RateLimitStore)
	cfg.RedisAddress = os.Getenv("EDGEGATE_REDIS_ADDRESS")
	cfg.RedisToken = os.Getenv("EDGEGATE_REDIS_TOKEN")
	cfg.RedisDB = getEnvInt("EDGEGATE_REDIS_DB", cfg.RedisDB)
	cfg.RedisPrefix = getEnvOrDefault("EDGEGATE_REDIS_PREFIX", cfg.RedisPrefix)

	if proxies := os.Getenv("EDGEGATE_TRUSTED_PROXIES"); proxies != "" {
		cfg.TrustedProxies = splitAndTrim(proxies)
	}

	cfg.MetricsEnabled = getEnvBool("EDGEGATE_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsPath = getEnvOrDefault("EDGEGATE_METRICS_PATH", cfg.MetricsPath)

	return cfg
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.RateLimitRequests < 1 {
		return fmt.Errorf("rate limit requests must be positive, got %d", c.RateLimitRequests)
	}

	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimitWindow)
	}

	switch c.RateLimitStore {
	case "", StoreMemory, StoreRedis, StoreDisabled:
	default:
		return fmt.Errorf("unknown rate limit store type: %s", c.RateLimitStore)
	}

	if c.RateLimitStore == StoreRedis && c.RedisAddress == "" {
		return fmt.Errorf("redis rate limit store requires EDGEGATE_REDIS_ADDRESS")
	}

	if c.SessionCookie == "" {
		return fmt.Errorf("session cookie name must not be empty")
	}

	return nil
}

// EffectiveStore resolves the rate limit store type. When no store type is
// configured explicitly, redis is selected if both connection parameters
// are present, otherwise rate limiting is disabled (fail-open).
func (c *Config) EffectiveStore() string {
	if c.RateLimitStore != "" {
		return c.RateLimitStore
	}
	if c.RedisAddress != "" && c.RedisToken != "" {
		return StoreRedis
	}
	return StoreDisabled
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a boolean or a default.
// Accepts "true", "1", "yes", "on" (case-insensitive) as true values.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// getEnvInt returns the environment variable as an integer or a default.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// splitAndTrim splits a comma-separated list and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
