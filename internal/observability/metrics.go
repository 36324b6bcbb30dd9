package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatinv_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatinv_holds_created_total",
			Help: "Seats successfully held",
		},
	)

	HoldConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatinv_hold_conflicts_total",
			Help: "Seats reported unavailable on hold requests",
		},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatinv_holds_expired_total",
			Help: "Holds removed by the expiry sweep",
		},
	)

	ReconcileRehomed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatinv_reconcile_rehomed_total",
			Help: "Cart holds re-homed to a new session",
		},
	)

	RefundsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatinv_refunds_processed_total",
			Help: "Refund operations by kind",
		},
		[]string{"kind"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seatinv_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatinv_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatinv_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
