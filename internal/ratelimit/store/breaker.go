package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the circuit breaker wrapping a
// store.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// ConsecutiveFailures is the number of consecutive store failures that
	// trips the breaker.
	ConsecutiveFailures uint32

	// OpenTimeout is how long the breaker stays open before probing the
	// store again.
	OpenTimeout time.Duration

	// Logger for state change events.
	Logger *zap.Logger
}

// DefaultBreakerConfig returns a BreakerConfig with default values.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Name:                "ratelimit-store",
		ConsecutiveFailures: 5,
		OpenTimeout:         10 * time.Second,
	}
}

// BreakerStore wraps a Store with a circuit breaker. When the backing store
// fails repeatedly, further calls fail fast with ErrStoreUnavailable instead
// of stalling every request on a dead connection, which lets the limiter
// take its fail-open path immediately.
type BreakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps the given store with a circuit breaker.
func NewBreakerStore(inner Store, config *BreakerConfig) *BreakerStore {
	if config == nil {
		config = DefaultBreakerConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:    config.Name,
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("rate limit store breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A missing key is a normal outcome, not a store failure.
			return err == nil || IsKeyNotFound(err)
		},
	}

	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Get implements Store.
func (s *BreakerStore) Get(ctx context.Context, key string) (int64, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.Get(ctx, key)
	})
	if err != nil {
		return 0, s.wrapErr(err)
	}
	return result.(int64), nil
}

// incrResult carries the two return values of IncrementWithExpiry through
// the breaker's single-value Execute.
type incrResult struct {
	count int64
	ttl   time.Duration
}

// IncrementWithExpiry implements Store.
func (s *BreakerStore) IncrementWithExpiry(
	ctx context.Context,
	key string,
	delta int64,
	expiration time.Duration,
) (int64, time.Duration, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		count, ttl, err := s.inner.IncrementWithExpiry(ctx, key, delta, expiration)
		if err != nil {
			return nil, err
		}
		return incrResult{count: count, ttl: ttl}, nil
	})
	if err != nil {
		return 0, 0, s.wrapErr(err)
	}

	r := result.(incrResult)
	return r.count, r.ttl, nil
}

// Delete implements Store.
func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.inner.Delete(ctx, key)
	})
	if err != nil {
		return s.wrapErr(err)
	}
	return nil
}

// Close implements Store.
func (s *BreakerStore) Close() error {
	return s.inner.Close()
}

// wrapErr maps breaker rejections to ErrStoreUnavailable so callers have a
// single error to branch on.
func (s *BreakerStore) wrapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
