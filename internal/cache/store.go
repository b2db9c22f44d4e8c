package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used across the application.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// SetIfAbsent stores value under key only when no live value exists yet and
// reports whether it did. It is used to make one-shot tokens single use.
func SetIfAbsent(ctx context.Context, store Store, key string, value []byte, ttl time.Duration) (bool, error) {
	count, _, err := store.IncrementWithTTL(ctx, key+":claim", ttl)
	if err != nil {
		return false, err
	}
	if count > 1 {
		return false, nil
	}
	return true, store.Set(ctx, key, value, ttl)
}
