package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for the resolver. It implements
// engine.MetricsRecorder.
type Metrics struct {
	config MetricsConfig

	// Resolution metrics
	resolutions        *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	entriesAdded       prometheus.Counter
	stackDepth         prometheus.Histogram

	// Error metrics
	errorsByKind *prometheus.CounterVec
	rollbacks    *prometheus.CounterVec

	// Repository metrics
	repositoryPackages *prometheus.GaugeVec
	repositoryReloads  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the resolver metrics on a private registry. When cfg
// disables metrics every recorder is a no-op.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: cfg.Namespace, Name: name, Help: help}, labels)
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),

		resolutions: counter("resolutions_total", "Add calls by outcome", "outcome"),
		resolutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Duration of Add calls in seconds",
			Buckets:   buckets,
		}, []string{"outcome"}),
		entriesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "merge_entries_added_total",
			Help:      "Entries added to merge lists by successful Add calls",
		}),
		// The default depth limit is 100.
		stackDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "resolution_stack_depth",
			Help:      "Deepest recursion reached per Add call",
			Buckets:   prometheus.LinearBuckets(5, 10, 10),
		}),
		errorsByKind:      counter("resolution_errors_total", "Failed Add calls by error kind", "kind"),
		rollbacks:         counter("rollbacks_total", "Merge list rollbacks by scope", "scope"),
		repositoryReloads: counter("repository_reloads_total", "Repository reloads after a file change", "repository"),
		repositoryPackages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "repository_packages",
			Help:      "Package versions per loaded repository",
		}, []string{"repository"}),
	}

	if err := m.register(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) register() error {
	for _, c := range []prometheus.Collector{
		m.resolutions,
		m.resolutionDuration,
		m.entriesAdded,
		m.stackDepth,
		m.errorsByKind,
		m.rollbacks,
		m.repositoryPackages,
		m.repositoryReloads,
	} {
		if err := m.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

// RecordResolution records a finished Add call.
func (m *Metrics) RecordResolution(outcome string, duration time.Duration, added int) {
	if m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.resolutionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if added > 0 {
		m.entriesAdded.Add(float64(added))
	}
}

// RecordResolutionError records the kind of a failed Add call.
func (m *Metrics) RecordResolutionError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// RecordRollback records a restore of the merge list.
func (m *Metrics) RecordRollback(scope string) {
	if m.rollbacks == nil {
		return
	}
	m.rollbacks.WithLabelValues(scope).Inc()
}

// ObserveStackDepth records the deepest recursion of one Add call.
func (m *Metrics) ObserveStackDepth(depth int) {
	if m.stackDepth == nil {
		return
	}
	m.stackDepth.Observe(float64(depth))
}

// SetRepositoryPackages sets the package count of a loaded repository.
func (m *Metrics) SetRepositoryPackages(repository string, count int) {
	if m.repositoryPackages == nil {
		return
	}
	m.repositoryPackages.WithLabelValues(repository).Set(float64(count))
}

// RecordRepositoryReload records a repository reloaded from disk.
func (m *Metrics) RecordRepositoryReload(repository string) {
	if m.repositoryReloads == nil {
		return
	}
	m.repositoryReloads.WithLabelValues(repository).Inc()
}

// Registry returns the registry holding the metrics, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer measures one operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
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

// StartMetricsServer binds the listen address and serves metrics until ctx
// is cancelled. It returns immediately when metrics are disabled or no
// listen address is set; a bind failure is returned to the caller.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger zerolog.Logger) error {
	if m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", m.config.ListenAddress, err)
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("address", ln.Addr().String()).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("address", ln.Addr().String()).Str("path", path).Msg("serving metrics")
	return nil
}
