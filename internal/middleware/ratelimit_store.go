package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/rsvp/internal/cache"
)

const defaultRateWindow = time.Minute

// RateStore counts hits for a key within a fixed window.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

type rateWindow struct {
	hits    int
	resetAt time.Time
}

// memoryRateStore keeps windows in process. Expired windows are dropped at
// most once per window length.
type memoryRateStore struct {
	mu        sync.Mutex
	windows   map[string]rateWindow
	nextSweep time.Time
	clock     func() time.Time
}

// NewMemoryRateStore returns a RateStore for single-replica deployments.
func NewMemoryRateStore() RateStore {
	return &memoryRateStore{windows: map[string]rateWindow{}, clock: time.Now}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.nextSweep) {
		for k, w := range s.windows {
			if !now.Before(w.resetAt) {
				delete(s.windows, k)
			}
		}
		s.nextSweep = now.Add(window)
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = rateWindow{resetAt: now.Add(window)}
	}
	w.hits++
	s.windows[key] = w
	return w.hits, w.resetAt.Sub(now), nil
}

func (s *memoryRateStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

type sharedRateStore struct {
	store cache.Store
}

// NewCacheRateStore counts in a shared cache.Store (Redis or the database)
// so every replica enforces the same limit. A nil store returns nil.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return sharedRateStore{store: store}
}

func (s sharedRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	hits, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(hits), ttl, err
}
