package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for Amber.
type Metrics struct {
	config MetricsConfig

	// Fetch metrics
	fetches *prometheus.CounterVec

	// Compute metrics
	computes        *prometheus.CounterVec
	computeDuration *prometheus.HistogramVec

	// System metrics
	computesInFlight *prometheus.GaugeVec
	collections      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of fetch calls by outcome (hit, miss, join)",
			},
			[]string{"collection", "outcome"},
		),

		computes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "computes_total",
				Help:      "Total number of compute invocations by terminal status",
			},
			[]string{"collection", "status"},
		),
		computeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compute_duration_seconds",
				Help:      "Duration of compute invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"collection", "status"},
		),

		computesInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "computes_in_flight",
				Help:      "Current number of running compute invocations",
			},
			[]string{"collection"},
		),
		collections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "collections_registered",
				Help:      "Current number of registered collections",
			},
		),
	}

	registry.MustRegister(
		m.fetches,
		m.computes,
		m.computeDuration,
		m.computesInFlight,
		m.collections,
	)

	return m, nil
}

// RecordFetch increments the fetch counter for the given outcome.
func (m *Metrics) RecordFetch(collection, outcome string) {
	if m.fetches == nil {
		return
	}
	m.fetches.WithLabelValues(collection, outcome).Inc()
}

// RecordComputeStarted marks a compute invocation as in flight.
func (m *Metrics) RecordComputeStarted(collection string) {
	if m.computesInFlight == nil {
		return
	}
	m.computesInFlight.WithLabelValues(collection).Inc()
}

// RecordComputeFinished records a finished compute invocation with its
// terminal status and duration.
func (m *Metrics) RecordComputeFinished(collection, status string, duration time.Duration) {
	if m.computes == nil {
		return
	}
	m.computes.WithLabelValues(collection, status).Inc()
	m.computeDuration.WithLabelValues(collection, status).Observe(duration.Seconds())
	m.computesInFlight.WithLabelValues(collection).Dec()
}

// SetCollectionCount sets the number of registered collections.
func (m *Metrics) SetCollectionCount(count float64) {
	if m.collections == nil {
		return
	}
	m.collections.Set(count)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
