package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dashware/edgegate/internal/ratelimit/store"
)

// FixedWindowLimiter implements fixed-window rate limiting on top of a
// counter store. The first request for a key starts a window of the
// configured length; every request within the window increments the
// counter, including rejected ones, so repeated hits stay rejected until
// the window rolls over.
//
// A store failure degrades to allowing the request. Availability is
// preferred over strict limiting, and the breaker-wrapped Redis store makes
// that degradation fast rather than a per-request timeout.
type FixedWindowLimiter struct {
	store  store.Store
	limit  int
	window time.Duration
	logger *zap.Logger

	// Throttles the fail-open warning so a store outage does not flood
	// the log with one warning per request.
	failOpenWarn rate.Sometimes
}

// NewFixedWindowLimiter creates a new fixed window rate limiter. A nil
// store falls back to an in-process memory store.
func NewFixedWindowLimiter(s store.Store, limit int, window time.Duration, logger *zap.Logger) *FixedWindowLimiter {
	if s == nil {
		s = store.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FixedWindowLimiter{
		store:        s,
		limit:        limit,
		window:       window,
		logger:       logger,
		failOpenWarn: rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()

	count, ttl, err := l.store.IncrementWithExpiry(ctx, key, 1, l.window)
	if err != nil {
		l.failOpenWarn.Do(func() {
			l.logger.Warn("rate limit store unavailable, failing open",
				zap.String("key", key),
				zap.Error(err),
			)
		})

		return &Result{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit,
			ResetAt:   now.Add(l.window),
		}, nil
	}

	allowed := count <= int64(l.limit)

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = ttl
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAt:    now.Add(ttl),
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

// Close releases the underlying store.
func (l *FixedWindowLimiter) Close() error {
	return l.store.Close()
}

// Ensure FixedWindowLimiter implements Limiter.
var _ Limiter = (*FixedWindowLimiter)(nil)
