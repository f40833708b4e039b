// internal/observe/metrics.go
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontlinemuse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frontlinemuse_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GenerationsTotal counts generation outcomes by artifact type.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontlinemuse_generations_total",
			Help: "Total generation attempts by type and outcome",
		},
		[]string{"type", "status"},
	)

	// MusicCallbacksTotal counts inbound music callbacks by outcome.
	MusicCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontlinemuse_music_callbacks_total",
			Help: "Inbound music callbacks by outcome",
		},
		[]string{"status"},
	)
)

// RecordGeneration increments the generation counter for one outcome.
func RecordGeneration(generationType string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	GenerationsTotal.WithLabelValues(generationType, status).Inc()
}
