package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Run metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	RunErrorsTotal     *prometheus.CounterVec
	DecisionsTotal     *prometheus.CounterVec
	DecisionConfidence *prometheus.HistogramVec

	// Stage metrics
	StageDuration    *prometheus.HistogramVec
	StageErrorsTotal *prometheus.CounterVec

	// Gate metrics
	GateScores        *prometheus.HistogramVec
	GateVerdictsTotal *prometheus.CounterVec

	// Reasoner metrics
	ReasonerRequestsTotal  *prometheus.CounterVec
	ReasonerErrorsTotal    *prometheus.CounterVec
	ReasonerDuration       *prometheus.HistogramVec
	DegradedArtifactsTotal *prometheus.CounterVec

	// Memory index metrics
	MemoryQueriesTotal  *prometheus.CounterVec
	MemoryQueryDuration prometheus.Histogram
	MemoryRecords       prometheus.Gauge

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// runBuckets are histogram buckets for full pipeline runs (in seconds)
var runBuckets = []float64{1, 5, 10, 30, 60, 120, 180, 300, 600}

// scoreBuckets are histogram buckets for gate score metrics (0 to 100)
var scoreBuckets = []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		// Run metrics
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "run",
				Name:      "requests_total",
				Help:      "Total number of recommendation runs started",
			},
			[]string{"symbol"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Duration of recommendation runs in seconds",
				Buckets:   runBuckets,
			},
			[]string{"symbol", "status"},
		),
		RunErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "run",
				Name:      "errors_total",
				Help:      "Total number of run errors",
			},
			[]string{"symbol", "error_type"},
		),
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "run",
				Name:      "decisions_total",
				Help:      "Total number of recommendations by decision",
			},
			[]string{"decision"},
		),
		DecisionConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "run",
				Name:      "confidence",
				Help:      "Distribution of recommendation confidence levels",
				Buckets:   scoreBuckets,
			},
			[]string{"decision"},
		),

		// Stage metrics
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"stage"},
		),
		StageErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "stage",
				Name:      "errors_total",
				Help:      "Total number of stage errors",
			},
			[]string{"stage", "error_type"},
		),

		// Gate metrics
		GateScores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "gate",
				Name:      "score",
				Help:      "Distribution of gate scores",
				Buckets:   scoreBuckets,
			},
			[]string{"gate"},
		),
		GateVerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "gate",
				Name:      "verdicts_total",
				Help:      "Total number of gate verdicts",
			},
			[]string{"gate", "verdict"},
		),

		// Reasoner metrics
		ReasonerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "reasoner",
				Name:      "requests_total",
				Help:      "Total number of reasoner calls",
			},
			[]string{"provider", "role"},
		),
		ReasonerErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "reasoner",
				Name:      "errors_total",
				Help:      "Total number of reasoner errors",
			},
			[]string{"provider", "role", "error_type"},
		),
		ReasonerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "reasoner",
				Name:      "duration_seconds",
				Help:      "Duration of reasoner calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"provider", "role"},
		),
		DegradedArtifactsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "reasoner",
				Name:      "degraded_artifacts_total",
				Help:      "Total number of deliberation artifacts replaced by degraded placeholders",
			},
			[]string{"role"},
		),

		// Memory index metrics
		MemoryQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "memory",
				Name:      "queries_total",
				Help:      "Total number of memory index queries",
			},
			[]string{"status"},
		),
		MemoryQueryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "memory",
				Name:      "query_duration_seconds",
				Help:      "Memory index query duration in seconds",
				Buckets:   defaultBuckets,
			},
		),
		MemoryRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "trade_council",
				Subsystem: "memory",
				Name:      "records",
				Help:      "Current number of records in the memory index",
			},
		),

		// External API metrics
		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trade_council",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "trade_council",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trade_council",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// RecordRun records the start of a recommendation run
func (m *Metrics) RecordRun(symbol string) {
	m.RunsTotal.WithLabelValues(symbol).Inc()
}

// RecordRunDuration records the duration of a recommendation run
func (m *Metrics) RecordRunDuration(symbol, status string, duration time.Duration) {
	m.RunDuration.WithLabelValues(symbol, status).Observe(duration.Seconds())
}

// RecordRunError records a run error
func (m *Metrics) RecordRunError(symbol, errorType string) {
	m.RunErrorsTotal.WithLabelValues(symbol, errorType).Inc()
}

// RecordDecision records a completed recommendation
func (m *Metrics) RecordDecision(decision string, confidence float64) {
	m.DecisionsTotal.WithLabelValues(decision).Inc()
	m.DecisionConfidence.WithLabelValues(decision).Observe(confidence)
}

// RecordStageDuration records the duration of a pipeline stage
func (m *Metrics) RecordStageDuration(stage string, duration time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageError records a stage error
func (m *Metrics) RecordStageError(stage, errorType string) {
	m.StageErrorsTotal.WithLabelValues(stage, errorType).Inc()
}

// RecordGate records a gate score and verdict
func (m *Metrics) RecordGate(gate, verdict string, score float64) {
	m.GateScores.WithLabelValues(gate).Observe(score)
	m.GateVerdictsTotal.WithLabelValues(gate, verdict).Inc()
}

// RecordReasonerRequest records a reasoner call
func (m *Metrics) RecordReasonerRequest(provider, role string) {
	m.ReasonerRequestsTotal.WithLabelValues(provider, role).Inc()
}

// RecordReasonerError records a reasoner error
func (m *Metrics) RecordReasonerError(provider, role, errorType string) {
	m.ReasonerErrorsTotal.WithLabelValues(provider, role, errorType).Inc()
}

// RecordReasonerDuration records the duration of a reasoner call
func (m *Metrics) RecordReasonerDuration(provider, role string, duration time.Duration) {
	m.ReasonerDuration.WithLabelValues(provider, role).Observe(duration.Seconds())
}

// RecordDegradedArtifact records a degraded placeholder artifact
func (m *Metrics) RecordDegradedArtifact(role string) {
	m.DegradedArtifactsTotal.WithLabelValues(role).Inc()
}

// RecordMemoryQuery records a memory index query
func (m *Metrics) RecordMemoryQuery(status string) {
	m.MemoryQueriesTotal.WithLabelValues(status).Inc()
}

// RecordMemoryQueryDuration records the duration of a memory index query
func (m *Metrics) RecordMemoryQueryDuration(duration time.Duration) {
	m.MemoryQueryDuration.Observe(duration.Seconds())
}

// SetMemoryRecords sets the current memory index size
func (m *Metrics) SetMemoryRecords(n int) {
	m.MemoryRecords.Set(float64(n))
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveRun records the run duration and status
func (t *Timer) ObserveRun(symbol, status string) {
	t.metrics.RecordRunDuration(symbol, status, time.Since(t.start))
}

// ObserveStage records the stage duration
func (t *Timer) ObserveStage(stage string) {
	t.metrics.RecordStageDuration(stage, time.Since(t.start))
}

// ObserveReasoner records the reasoner call duration
func (t *Timer) ObserveReasoner(provider, role string) {
	t.metrics.RecordReasonerDuration(provider, role, time.Since(t.start))
}

// ObserveExternalAPI records the external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

// ObserveMemoryQuery records the memory index query duration
func (t *Timer) ObserveMemoryQuery() {
	t.metrics.RecordMemoryQueryDuration(time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
