// Package store provides counter storage backends for rate limiting.
package store

import (
	"context"
	"errors"
	"time"
)

// Store defines the interface for rate limit counter storage.
//
// IncrementWithExpiry is the primitive the fixed-window limiter is built
// on: it must atomically increment the counter, start the expiry window on
// the first increment, and report the remaining window. Implementations
// must not read-modify-write across separate calls.
type Store interface {
	// Get retrieves the current counter value for the given key.
	Get(ctx context.Context, key string) (int64, error)

	// IncrementWithExpiry atomically increments the counter for the given
	// key by delta and sets the expiration if the key is new. It returns
	// the new counter value and the time remaining until the key expires.
	IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, time.Duration, error)

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error

	// Close closes the store and releases resources.
	Close() error
}

// ErrStoreUnavailable is returned when the backing store cannot be reached,
// including when the circuit breaker is open.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// ErrKeyNotFound is returned when a key is not found in the store.
type ErrKeyNotFound struct {
	Key string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsKeyNotFound returns true if the error is a key not found error.
func IsKeyNotFound(err error) bool {
	var notFound *ErrKeyNotFound
	return errors.As(err, &notFound)
}
