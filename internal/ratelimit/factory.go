package ratelimit

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dashware/edgegate/internal/ratelimit/store"
)

// Store type names accepted by the factory.
const (
	StoreTypeMemory   = "memory"
	StoreTypeRedis    = "redis"
	StoreTypeDisabled = "disabled"
)

// FactoryConfig holds configuration for creating rate limiters.
type FactoryConfig struct {
	// Requests is the maximum number of requests allowed in the window.
	Requests int

	// Window is the time window for the rate limit.
	Window time.Duration

	// StoreType selects the counter store:
	//   - "memory": in-process counters, single instance only
	//   - "redis": shared atomic counters, multi-instance safe
	//   - "disabled": no limiting at all (fail-open)
	StoreType string

	// Redis configuration (if StoreType is redis)
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Logger for the rate limiter.
	Logger *zap.Logger
}

// DefaultFactoryConfig returns a FactoryConfig with default values.
func DefaultFactoryConfig() *FactoryConfig {
	return &FactoryConfig{
		Requests:    50,
		Window:      10 * time.Second,
		StoreType:   StoreTypeMemory,
		RedisPrefix: "ratelimit:",
	}
}

// NewLimiter creates a rate limiter based on the configuration. The Redis
// store is wrapped in a circuit breaker so an unreachable store degrades to
// fail-open without stalling requests.
func NewLimiter(config *FactoryConfig) (Limiter, error) {
	if config == nil {
		config = DefaultFactoryConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch config.StoreType {
	case StoreTypeDisabled:
		logger.Warn("rate limiting disabled, all requests will be allowed")
		return NewNoopLimiter(), nil

	case StoreTypeMemory, "":
		return NewFixedWindowLimiter(store.NewMemoryStore(), config.Requests, config.Window, logger), nil

	case StoreTypeRedis:
		redisConfig := store.DefaultRedisConfig()
		redisConfig.Address = config.RedisAddress
		redisConfig.Password = config.RedisPassword
		redisConfig.DB = config.RedisDB
		if config.RedisPrefix != "" {
			redisConfig.Prefix = config.RedisPrefix
		}
		redisConfig.Logger = logger

		redisStore, err := store.NewRedisStoreWithConfig(redisConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}

		breakerConfig := store.DefaultBreakerConfig()
		breakerConfig.Logger = logger

		return NewFixedWindowLimiter(
			store.NewBreakerStore(redisStore, breakerConfig),
			config.Requests,
			config.Window,
			logger,
		), nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", config.StoreType)
	}
}
