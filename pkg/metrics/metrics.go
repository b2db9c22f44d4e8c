package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by provider and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"provider", "result"},
	)

	// Operations counts RSVP mutations by operation (create|update|cancel|recompute) and result.
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_operations_total",
			Help: "Total number of RSVP operations",
		},
		[]string{"op", "result"},
	)

	// WaitlistPromotions counts attendees moved off the waitlist.
	WaitlistPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_waitlist_promotions_total",
			Help: "Total number of RSVPs promoted from the waitlist",
		},
	)

	// WaitlistDemotions counts attendees pushed back onto the waitlist.
	WaitlistDemotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_waitlist_demotions_total",
			Help: "Total number of RSVPs moved onto the waitlist",
		},
	)

	// RecomputeConflicts counts optimistic version clashes while recomputing a waitlist.
	RecomputeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_recompute_conflicts_total",
			Help: "Total number of waitlist recompute version conflicts",
		},
	)

	// RealtimeConnections tracks open websocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsvp_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// APIErrors counts error responses by route and application error code.
	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_api_errors_total",
			Help: "Total number of API error responses by error code",
		},
		[]string{"path", "code"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rsvp_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
