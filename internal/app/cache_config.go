package app

import (
	"fmt"
	"strings"

	"github.com/go-redis/redis"

	"github.com/charlesng35/rsvp/internal/cache"
)

// RedisClientConfig builds the rate-limit store settings. cache.redis.address
// is either host:port or a redis:// or rediss:// URL; values in the URL win
// over the separate password, db and tls keys.
func (c CacheConfig) RedisClientConfig() (cache.RedisConfig, error) {
	r := c.Redis
	out := cache.RedisConfig{
		Address:  strings.TrimSpace(r.Address),
		Password: r.Password,
		DB:       r.DB,
		TLS:      r.TLS,
		Timeout:  r.Timeout,
		Prefix:   r.Prefix,
	}

	if !strings.Contains(out.Address, "://") {
		return out, nil
	}
	opts, err := redis.ParseURL(out.Address)
	if err != nil {
		return cache.RedisConfig{}, fmt.Errorf("cache.redis.address: %w", err)
	}
	out.Address = opts.Addr
	out.TLS = out.TLS || opts.TLSConfig != nil
	if opts.Password != "" {
		out.Password = opts.Password
	}
	if opts.DB != 0 {
		out.DB = opts.DB
	}
	return out, nil
}
