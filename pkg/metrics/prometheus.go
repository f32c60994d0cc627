// Package metrics provides Prometheus metrics for the cfpboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Latency buckets in milliseconds. Store and LLM calls dominate, so the
// range reaches into tens of seconds.
var defaultLatencyBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring core
	votesSubmitted         prometheus.Counter
	reviewsSubmitted       *prometheus.CounterVec
	submissionsCreated     prometheus.Counter
	leaderboardComputed    prometheus.Counter
	leaderboardLatency     prometheus.Histogram
	leaderboardEntries     prometheus.Gauge
	weightVotesCount       prometheus.Gauge
	authorizationRejected  *prometheus.CounterVec
	validationRejected     *prometheus.CounterVec
	storeOperationLatency  *prometheus.HistogramVec
	storeOperationFailures *prometheus.CounterVec

	// Screening pipeline
	screeningJobs     *prometheus.CounterVec
	screeningLatency  prometheus.Histogram
	screeningSkipped  prometheus.Counter
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueUtilization  prometheus.Gauge
	queueRejected     *prometheus.CounterVec
	workerActiveCount prometheus.Gauge
	llmRequests       *prometheus.CounterVec
	llmLatency        *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager. Without WithRegisterer
// metrics register on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cfpboard",
		subsystem:        "",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(name, help string, keys ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, keys)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		})
	}
	histogramVec := func(name, help string, keys ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		}, keys)
	}

	m.votesSubmitted = counter("votes_submitted_total", "Weight votes accepted (creates and updates)")
	m.reviewsSubmitted = counterVec("reviews_submitted_total", "Reviews accepted; forced=true when the reviewer id was overwritten with the caller", "forced")
	m.submissionsCreated = counter("submissions_created_total", "Submissions created")
	m.leaderboardComputed = counter("leaderboard_computations_total", "Leaderboard recomputations")
	m.leaderboardLatency = histogram("leaderboard_compute_latency_milliseconds", "Time to load records and rank submissions")
	m.leaderboardEntries = gauge("leaderboard_entries", "Entries in the last computed leaderboard")
	m.weightVotesCount = gauge("weight_votes", "Weight votes seen by the last aggregation")
	m.authorizationRejected = counterVec("authorization_rejected_total", "Operations rejected for missing role or ownership", "operation")
	m.validationRejected = counterVec("validation_rejected_total", "Operations rejected for invalid input", "operation")
	m.storeOperationLatency = histogramVec("store_operation_latency_milliseconds", "Latency of store operations", "store", "op")
	m.storeOperationFailures = counterVec("store_operation_failures_total", "Failed store operations", "store", "op")

	m.screeningJobs = counterVec("screening_jobs_total", "Screening jobs by outcome", "outcome")
	m.screeningLatency = histogram("screening_latency_milliseconds", "Time spent screening one submission")
	m.screeningSkipped = counter("screening_skipped_total", "Screening jobs dropped as already seen")
	m.queueSize = gauge("screening_queue_size", "Jobs waiting in the screening queue")
	m.queueCapacity = gauge("screening_queue_capacity", "Screening queue capacity")
	m.queueUtilization = gauge("screening_queue_utilization", "Screening queue fill ratio (0-1)")
	m.queueRejected = counterVec("screening_queue_rejected_total", "Jobs rejected by the screening queue", "reason")
	m.workerActiveCount = gauge("screening_workers_active", "Running screening workers")
	m.llmRequests = counterVec("llm_requests_total", "LLM requests by provider and outcome", "provider", "outcome")
	m.llmLatency = histogramVec("llm_request_latency_milliseconds", "LLM request latency", "provider")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = counterVec("errors_total", "Errors by component and type", "component", "type")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "type")

	m.systemMemoryUsage = gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = gauge("system_goroutines", "Running goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_milliseconds", "Average GC pause")
}

// Scoring core

func RecordVoteSubmitted() {
	globalManager.votesSubmitted.Inc()
}

func RecordReviewSubmitted(forced bool) {
	v := "false"
	if forced {
		v = "true"
	}
	globalManager.reviewsSubmitted.WithLabelValues(v).Inc()
}

func RecordSubmissionCreated() {
	globalManager.submissionsCreated.Inc()
}

func RecordLeaderboardComputed(latencyMs float64, entries int) {
	globalManager.leaderboardComputed.Inc()
	globalManager.leaderboardLatency.Observe(latencyMs)
	globalManager.leaderboardEntries.Set(float64(entries))
}

func UpdateWeightVotes(count int) {
	globalManager.weightVotesCount.Set(float64(count))
}

func RecordAuthorizationRejected(operation string) {
	globalManager.authorizationRejected.WithLabelValues(operation).Inc()
}

func RecordValidationRejected(operation string) {
	globalManager.validationRejected.WithLabelValues(operation).Inc()
}

// ObserveStoreOperation records latency for op on store and counts failures.
func ObserveStoreOperation(store, op string, start time.Time, err error) {
	globalManager.storeOperationLatency.WithLabelValues(store, op).Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		globalManager.storeOperationFailures.WithLabelValues(store, op).Inc()
	}
}

// Screening pipeline

func RecordScreeningJob(outcome string, latencyMs float64) {
	globalManager.screeningJobs.WithLabelValues(outcome).Inc()
	globalManager.screeningLatency.Observe(latencyMs)
}

func RecordScreeningSkipped() {
	globalManager.screeningSkipped.Inc()
}

func UpdateQueue(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	globalManager.queueCapacity.Set(float64(capacity))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

func RecordLLMRequest(provider, outcome string, latencyMs float64) {
	globalManager.llmRequests.WithLabelValues(provider, outcome).Inc()
	globalManager.llmLatency.WithLabelValues(provider).Observe(latencyMs)
}

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Enabled reports whether the manager was built with collection enabled.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often background updaters should refresh gauges.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval of the global manager.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }
