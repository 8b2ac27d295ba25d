package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for engine self-monitoring.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// Status engine metrics
	StatusRequestsTotal *prometheus.CounterVec
	StatusDuration      *prometheus.HistogramVec

	// Mesh metrics
	MeshFetchDuration *prometheus.HistogramVec
	MeshFetchErrors   *prometheus.CounterVec

	// Batch metrics
	BatchTasksTotal *prometheus.CounterVec

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestSeconds prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		StatusRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshstat_status_requests_total",
			Help: "Instance status queries by shape and result.",
		}, []string{"shape", "result"}),

		StatusDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshstat_status_duration_seconds",
			Help:    "Time to build one instance status snapshot.",
			Buckets: prometheus.DefBuckets,
		}, []string{"shape"}),

		MeshFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshstat_mesh_fetch_duration_seconds",
			Help:    "Time to fetch and aggregate one mesh flavor's status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"flavor"}),

		MeshFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshstat_mesh_fetch_errors_total",
			Help: "Mesh status fetches that failed, by flavor.",
		}, []string{"flavor"}),

		BatchTasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshstat_batch_tasks_total",
			Help: "Fan-out tasks by outcome.",
		}, []string{"outcome"}),

		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshstat_api_requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "code"}),

		APIRequestSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshstat_api_request_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.StatusRequestsTotal,
		m.StatusDuration,
		m.MeshFetchDuration,
		m.MeshFetchErrors,
		m.BatchTasksTotal,
		m.APIRequestsTotal,
		m.APIRequestSeconds,
	)
	return m
}
