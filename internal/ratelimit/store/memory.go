package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxCASRetries bounds the CAS retry loop so heavy contention cannot spin
// forever.
const maxCASRetries = 100

// defaultCleanupInterval is how often expired entries are swept.
const defaultCleanupInterval = time.Minute

// entry represents a stored counter with its window expiration.
type entry struct {
	value      int64
	expiration time.Time
}

// MemoryStore implements Store using in-process storage. It is suitable for
// local development and single-node deployments only; counters are not
// shared across instances and are lost on restart.
type MemoryStore struct {
	data    sync.Map
	cleanup *time.Ticker
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanupInterval(defaultCleanupInterval)
}

// NewMemoryStoreWithCleanupInterval creates a new in-memory store with a
// custom cleanup interval.
func NewMemoryStoreWithCleanupInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		cleanup: time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	go s.startCleanup()

	return s
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	value, ok := s.data.Load(key)
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}

	e := value.(*entry)

	if !e.expiration.IsZero() && time.Now().After(e.expiration) {
		s.data.Delete(key)
		return 0, &ErrKeyNotFound{Key: key}
	}

	return e.value, nil
}

// IncrementWithExpiry implements Store. The counter and its expiration are
// updated with a CAS loop so concurrent increments never lose updates.
func (s *MemoryStore) IncrementWithExpiry(
	ctx context.Context,
	key string,
	delta int64,
	expiration time.Duration,
) (int64, time.Duration, error) {
	select {
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	default:
	}

	for retries := 0; retries < maxCASRetries; retries++ {
		now := time.Now()

		value, ok := s.data.Load(key)
		if !ok {
			newEntry := &entry{
				value:      delta,
				expiration: now.Add(expiration),
			}
			if actual, loaded := s.data.LoadOrStore(key, newEntry); loaded {
				// Another goroutine created it first, fall through to CAS.
				value = actual
			} else {
				return delta, expiration, nil
			}
		}

		e := value.(*entry)

		// Expired entry: restart the window with the new delta.
		if !e.expiration.IsZero() && now.After(e.expiration) {
			newEntry := &entry{
				value:      delta,
				expiration: now.Add(expiration),
			}
			if s.data.CompareAndSwap(key, e, newEntry) {
				return delta, expiration, nil
			}
			continue
		}

		// Live entry: increment, keep the original window.
		newEntry := &entry{
			value:      e.value + delta,
			expiration: e.expiration,
		}
		if s.data.CompareAndSwap(key, e, newEntry) {
			ttl := time.Until(newEntry.expiration)
			if ttl < 0 {
				ttl = 0
			}
			return newEntry.value, ttl, nil
		}
		// CAS failed, retry.
	}

	return 0, 0, fmt.Errorf("increment with expiry failed: max retries (%d) exceeded", maxCASRetries)
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.data.Delete(key)
	return nil
}

// Close implements Store. Close is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.cleanup.Stop()
	close(s.done)

	return nil
}

// startCleanup periodically removes expired entries.
func (s *MemoryStore) startCleanup() {
	for {
		select {
		case <-s.cleanup.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

// cleanupExpired removes all expired entries.
func (s *MemoryStore) cleanupExpired() {
	now := time.Now()

	s.data.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		if !e.expiration.IsZero() && now.After(e.expiration) {
			s.data.Delete(key)
		}
		return true
	})
}
