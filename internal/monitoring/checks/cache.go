package checks

import (
	"context"
	"time"

	"github.com/charlesng35/rsvp/internal/monitoring"
)

// Pinger is implemented by the cache stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache returns a readiness probe for the shared cache. The name reports
// which backend is in use; a nil store means the rate limiter runs in
// process memory, which is healthy but not shared across replicas.
func Cache(name string, store Pinger) monitoring.Check {
	if name == "" {
		name = "cache"
	}
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
		if store == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "in-memory"}
		}
		start := time.Now()
		return monitoring.ResultFromError(store.Ping(ctx), time.Since(start))
	})
}
