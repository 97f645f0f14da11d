package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for simulation runs.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	// Year and stage metrics
	yearsProcessed *prometheus.CounterVec
	yearDuration   prometheus.Histogram
	stageDuration  *prometheus.HistogramVec
	eventsEmitted  *prometheus.CounterVec

	// Outcome metrics
	activeWorkforce  prometheus.Gauge
	irsLimitsApplied prometheus.Counter
	checkResults     *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of simulation runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of simulation runs completed",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of simulation runs in seconds",
			Buckets:   buckets,
		}, []string{"status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Current number of active runs",
		}),

		yearsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_processed_total",
			Help:      "Total number of simulation years processed",
		}, []string{"outcome"}),
		yearDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "year_duration_seconds",
			Help:      "Duration of a single simulation year in seconds",
			Buckets:   buckets,
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of generator stages in seconds",
			Buckets:   buckets,
		}, []string{"stage", "outcome"}),
		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Total number of workforce events emitted by type",
		}, []string{"event_type"}),

		activeWorkforce: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workforce",
			Help:      "Active headcount at the end of the last materialized year",
		}),
		irsLimitsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "irs_limits_applied_total",
			Help:      "Total number of contributions capped at the IRS limit",
		}),
		checkResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_checks_total",
			Help:      "Total number of year transition checks by result",
		}, []string{"check", "result"}),

		errorsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_by_class_total",
			Help:      "Total number of errors by error class",
		}, []string{"class"}),
		errorsByCode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_by_code_total",
			Help:      "Total number of errors by error code",
		}, []string{"code"}),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.activeRuns,
		m.yearsProcessed,
		m.yearDuration,
		m.stageDuration,
		m.eventsEmitted,
		m.activeWorkforce,
		m.irsLimitsApplied,
		m.checkResults,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Registry returns the metrics registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if m.registry == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordYear records a processed year.
func (m *Metrics) RecordYear(outcome string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.yearsProcessed.WithLabelValues(outcome).Inc()
	m.yearDuration.Observe(duration.Seconds())
}

// RecordStage records a generator stage execution.
func (m *Metrics) RecordStage(stage, outcome string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// RecordEvents adds emitted event counts keyed by event type.
func (m *Metrics) RecordEvents(counts map[string]int) {
	if m.registry == nil {
		return
	}
	for t, n := range counts {
		m.eventsEmitted.WithLabelValues(t).Add(float64(n))
	}
}

// SetActiveWorkforce sets the active headcount gauge.
func (m *Metrics) SetActiveWorkforce(count int) {
	if m.registry == nil {
		return
	}
	m.activeWorkforce.Set(float64(count))
}

// RecordIRSLimitsApplied adds capped contribution counts.
func (m *Metrics) RecordIRSLimitsApplied(count int) {
	if m.registry == nil || count <= 0 {
		return
	}
	m.irsLimitsApplied.Add(float64(count))
}

// RecordCheck records a transition check result.
func (m *Metrics) RecordCheck(check string, passed bool) {
	if m.registry == nil {
		return
	}
	result := "passed"
	if !passed {
		result = "failed"
	}
	m.checkResults.WithLabelValues(check, result).Inc()
}

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.registry == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
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

// StartMetricsServer serves metrics on the configured address. It is a no-op
// when metrics are disabled or no address is set.
func (m *Metrics) StartMetricsServer(logger *Logger) error {
	if m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	return nil
}

// WriteTextfile writes the current registry to path in the Prometheus text
// format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Shutdown exports the textfile if configured and stops the metrics server.
func (m *Metrics) Shutdown(ctx context.Context) error {
	err := m.WriteTextfile(m.config.TextfilePath)
	if m.server != nil {
		err = errors.Join(err, m.server.Shutdown(ctx))
	}
	return err
}
