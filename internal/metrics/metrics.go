// Package metrics holds the service's Prometheus instruments.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ArtifactCacheTotal counts local cache hits and misses.
	ArtifactCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "previewd",
			Name:      "artifact_cache_total",
			Help:      "Local artifact cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	// IngestionsTotal counts ingestion outcomes.
	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "previewd",
			Name:      "ingestions_total",
			Help:      "Ingestion attempts by outcome",
		},
		[]string{"outcome"}, // "ok" / "degraded" / "failed" / "invalid"
	)

	// AnalysisRequestsTotal counts calls to the analysis service.
	AnalysisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "previewd",
			Name:      "analysis_requests_total",
			Help:      "Total number of analysis service requests",
		},
		[]string{"endpoint", "status"},
	)

	// AnalysisRequestDuration observes analysis request latency.
	AnalysisRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "previewd",
			Name:      "analysis_request_duration_seconds",
			Help:      "Analysis service request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)
)

var registered bool

// Register registers the service metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(ArtifactCacheTotal)
	prometheus.MustRegister(IngestionsTotal)
	prometheus.MustRegister(AnalysisRequestsTotal)
	prometheus.MustRegister(AnalysisRequestDuration)
	registered = true
}
