package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rideshare"

var (
	RidesCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rides_created_total", Help: "Rides published"})
	RidesDeleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rides_deleted_total", Help: "Rides deleted by their creator"})

	RequestsSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "join_requests_submitted_total", Help: "Join requests accepted into the ledger"})

	// Decisions counts approve/reject attempts by outcome label.
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "join_request_decisions_total", Help: "Approval engine decisions by action and outcome"},
		[]string{"action", "outcome"},
	)

	RequestsExpired = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "join_requests_expired_total", Help: "Pending requests rejected because the ride departed"})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "notification_failures_total", Help: "Notification emits that failed"})

	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_lookups_total", Help: "Read cache lookups by cache and result"},
		[]string{"cache", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
