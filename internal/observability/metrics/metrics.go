// Package metrics provides Prometheus instrumentation for buildcfg-server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string
	registry    *prometheus.Registry
	initOnce    sync.Once

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Snapshot domain metrics
	snapshotPublishTotal  *prometheus.CounterVec
	snapshotRetrieveTotal *prometheus.CounterVec
	snapshotDeleteTotal   *prometheus.CounterVec
	configRejectedTotal   *prometheus.CounterVec
	snapshotSizeBytes     prometheus.Histogram
)

// Init initializes the metrics system. Collectors are registered once per
// process; later calls only toggle whether they are recorded.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}
	initOnce.Do(register)
}

func register() {
	registry = prometheus.NewRegistry()
	factory := promauto.With(registry)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	snapshotPublishTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildcfg_snapshot_publish_total",
			Help: "Total number of snapshot publish attempts",
		},
		[]string{"format", "result"},
	)

	snapshotRetrieveTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildcfg_snapshot_retrieve_total",
			Help: "Total number of snapshot retrievals",
		},
		[]string{"status"},
	)

	snapshotDeleteTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildcfg_snapshot_delete_total",
			Help: "Total number of snapshot deletions",
		},
		[]string{"status"},
	)

	configRejectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildcfg_config_rejected_total",
			Help: "Configuration documents rejected by validation, by error kind",
		},
		[]string{"kind"},
	)

	snapshotSizeBytes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buildcfg_snapshot_size_bytes",
			Help:    "Size of stored snapshot documents",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
