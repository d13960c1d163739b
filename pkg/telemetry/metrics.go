package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for batch execution and policy
// decisions. When disabled, every recorder is a no-op.
type Metrics struct {
	config MetricsConfig

	// Batch metrics
	batchesStarted   prometheus.Counter
	batchesCompleted *prometheus.CounterVec
	batchDuration    *prometheus.HistogramVec

	// Operation metrics
	operationsExecuted *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec

	// Policy metrics
	policyDemotions *prometheus.CounterVec
	countdownsShown prometheus.Counter

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		batchesStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_started_total",
				Help:      "Total number of batch runs started",
			},
		),
		batchesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_completed_total",
				Help:      "Total number of batch runs completed",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of batch execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		operationsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_executed_total",
				Help:      "Total number of operations executed",
			},
			[]string{"verb", "entity_kind", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operation execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"verb", "entity_kind"},
		),

		policyDemotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_demotions_total",
				Help:      "Total number of automated policies demoted to manual",
			},
			[]string{"verb", "collection"},
		),
		countdownsShown: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "countdowns_shown_total",
				Help:      "Total number of countdowns shown for validated operations",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.batchesStarted,
		m.batchesCompleted,
		m.batchDuration,
		m.operationsExecuted,
		m.operationDuration,
		m.policyDemotions,
		m.countdownsShown,
		m.errorsByClass,
	)

	return m, nil
}

// RecordBatchStarted increments the counter for started batch runs.
func (m *Metrics) RecordBatchStarted() {
	if m.batchesStarted == nil {
		return
	}
	m.batchesStarted.Inc()
}

// RecordBatchCompleted records a completed batch run with its status and
// duration.
func (m *Metrics) RecordBatchCompleted(status string, duration time.Duration) {
	if m.batchesCompleted == nil {
		return
	}
	m.batchesCompleted.WithLabelValues(status).Inc()
	m.batchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordOperation records the execution of one operation.
func (m *Metrics) RecordOperation(verb, entityKind, status string, duration time.Duration) {
	if m.operationsExecuted == nil {
		return
	}
	m.operationsExecuted.WithLabelValues(verb, entityKind, status).Inc()
	m.operationDuration.WithLabelValues(verb, entityKind).Observe(duration.Seconds())
}

// RecordPolicyDemotion records an automated policy falling back to manual.
func (m *Metrics) RecordPolicyDemotion(verb, collection string) {
	if m.policyDemotions == nil {
		return
	}
	m.policyDemotions.WithLabelValues(verb, collection).Inc()
}

// RecordCountdownShown records one countdown presented to the operator.
func (m *Metrics) RecordCountdownShown() {
	if m.countdownsShown == nil {
		return
	}
	m.countdownsShown.Inc()
}

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
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
func (m *Metrics) StartMetricsServer(logger zerolog.Logger) error {
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
			logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}
