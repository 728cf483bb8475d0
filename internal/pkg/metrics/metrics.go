// Package metrics registers the Prometheus collectors of Realm Steward.
//
// Collectors are registered on the default registry at package init through promauto,
// so importing the package is enough to expose them on /metrics.
//
// Import Path: kc-steward.io/steward/internal/pkg/metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_http_requests_total",
			Help: "Total number of HTTP requests served by the API",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steward_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the API in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ComparisonsTotal counts comparison runs.
	ComparisonsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "steward_comparisons_total",
		Help: "Total number of realm comparisons",
	})

	// ComparisonDuration observes the wall time of one comparison including fetches.
	ComparisonDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "steward_comparison_duration_seconds",
		Help:    "Duration of realm comparisons in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// FetchFailuresTotal counts entity fetches that were degraded to an empty list.
	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steward_fetch_failures_total",
		Help: "Total number of entity fetches that failed and were treated as empty",
	}, []string{"category", "side"})

	// DiffRecordsTotal counts classified records per outcome.
	DiffRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steward_diff_records_total",
		Help: "Total number of classified entity records",
	}, []string{"category", "status"})

	// SyncEntitiesTotal counts per-entity sync outcomes.
	SyncEntitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steward_sync_entities_total",
		Help: "Total number of entity synchronizations",
	}, []string{"category", "result"})

	// TagBatchesTotal counts tag mutation batches.
	TagBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steward_tag_batches_total",
		Help: "Total number of tag mutation batches",
	}, []string{"action", "result"})

	// ClusterUp reports the last health-check outcome per cluster.
	ClusterUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "steward_cluster_up",
		Help: "Whether the realm of a cluster answered the last health check (1) or not (0)",
	}, []string{"cluster_id"})
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
