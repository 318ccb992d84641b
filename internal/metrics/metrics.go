// Package metrics holds the process-wide prometheus collectors.
//
// Collectors are registered in the default registry through promauto, so
// promhttp.Handler() exposes them without extra wiring.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache lookups by outcome
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_requests_total",
			Help: "Total number of cache lookups by result",
		},
		[]string{"result"}, // hit, miss, coalesced
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_invalidations_total",
			Help: "Total number of entries marked stale by invalidation source",
		},
		[]string{"source"}, // local, remote
	)

	CacheFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_cache_fetch_errors_total",
			Help: "Total number of failed cache fetches",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_cache_entries",
			Help: "Number of entries currently held by the cache",
		},
	)

	// Remote expense service calls
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_api_request_duration_seconds",
			Help:    "Duration of requests to the expense service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "status"},
	)

	VoiceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_voice_transitions_total",
			Help: "Total number of voice state machine transitions",
		},
		[]string{"from", "to"},
	)

	BusMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_bus_messages_total",
			Help: "Total number of invalidation bus messages",
		},
		[]string{"direction", "result"}, // published/consumed, ok/error/skipped
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
