package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pension_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pension_holds_created_total",
			Help: "Proposed bookings created",
		},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pension_holds_expired_total",
			Help: "Proposed bookings reclaimed after TTL expiry",
		},
	)

	BookingsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pension_bookings_confirmed_total",
			Help: "Bookings confirmed",
		},
	)

	ConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pension_conflicts_total",
			Help: "Availability conflicts reported to callers",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pension_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pension_rate_limit_exceeded_total",
			Help: "Requests dropped by the rate limiter",
		},
	)
)
