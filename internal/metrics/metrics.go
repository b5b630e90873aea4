// Package metrics holds the Prometheus collectors shared across the backend.
// All collectors are registered with the default registry and exposed via /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequests counts requests by method, route pattern and status code.
	// The route pattern (not the raw path) keeps trip ids out of the label set.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration measures request latency by method and route pattern.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// UpstreamRequests counts calls to the LLM by advisory kind and outcome.
	//
	// Labels: kind (weather, advice), outcome (ok, rate_limited, unauthorized, unavailable)
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyage_upstream_requests_total",
			Help: "Total number of advisory upstream calls",
		},
		[]string{"kind", "outcome"},
	)

	// UpstreamDuration measures advisory upstream latency including retries.
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyage_upstream_duration_seconds",
			Help:    "Advisory upstream call duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"kind"},
	)

	// CacheLookups counts advisory cache reads.
	//
	// Labels: kind (weather, advice), result (hit, miss, stale, error)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyage_cache_lookups_total",
			Help: "Total number of advisory cache lookups",
		},
		[]string{"kind", "result"},
	)

	// TripsMigrated counts trips moved from the active to the past partition.
	TripsMigrated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voyage_trips_migrated_total",
			Help: "Total number of trips moved to the past partition",
		},
	)

	// CreditsConsumed counts consumable trip credits spent on trip creation.
	CreditsConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voyage_credits_consumed_total",
			Help: "Total number of consumable trip credits spent",
		},
	)

	// BillingEvents counts billing webhook events by type and whether they were applied.
	BillingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyage_billing_events_total",
			Help: "Total number of billing webhook events",
		},
		[]string{"type", "result"},
	)

	// ActiveSessions is the number of signed-in users with a running cleanup scheduler.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voyage_active_sessions",
			Help: "Number of sessions with a running cleanup scheduler",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		UpstreamRequests,
		UpstreamDuration,
		CacheLookups,
		TripsMigrated,
		CreditsConsumed,
		BillingEvents,
		ActiveSessions,
	)
}

// ObserveUpstream records one advisory upstream call.
func ObserveUpstream(kind, outcome string, took time.Duration) {
	UpstreamRequests.WithLabelValues(kind, outcome).Inc()
	UpstreamDuration.WithLabelValues(kind).Observe(took.Seconds())
}
