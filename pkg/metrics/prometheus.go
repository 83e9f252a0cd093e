// Package metrics provides Prometheus metrics for the tier progression engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector exported by the engine.
type Manager struct {
	namespace       string
	subsystem       string
	enabled         bool
	refreshInterval time.Duration
	customLabels    map[string]string
	registry        prometheus.Registerer

	// Progression business metrics
	evaluationsSubmitted prometheus.Counter
	evaluationsDuplicate prometheus.Counter
	signalUpdates        prometheus.Counter
	careScore            prometheus.Histogram
	promotions           *prometheus.CounterVec
	promotionRejections  *prometheus.CounterVec
	versionConflicts     *prometheus.CounterVec
	driversEnrolled      prometheus.Counter
	driversTotal         prometheus.Gauge
	driversPerLevel      *prometheus.GaugeVec
	ladderLevels         prometheus.Gauge
	ladderReplacements   prometheus.Counter

	// Batch recompute metrics
	batchRuns          *prometheus.CounterVec
	batchDuration      prometheus.Histogram
	batchLastProcessed prometheus.Gauge
	batchLastPromoted  prometheus.Gauge
	batchLastUnchanged prometheus.Gauge
	batchLastSkipped   prometheus.Gauge
	batchLastUnix      prometheus.Gauge

	// Store metrics
	storeOperationLatency *prometheus.HistogramVec
	storeErrors           *prometheus.CounterVec

	// Queue and worker metrics
	queueCapacity           prometheus.Gauge
	queueSize               prometheus.Gauge
	queueEnqueueErrors      prometheus.Counter
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "tierd",
		subsystem:       "progression",
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		customLabels:    make(map[string]string),
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}
	// Disabled managers still hand out working collectors; nothing scrapes them.
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often gauge refreshers should run.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collector definitions
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)
	latencyBuckets := []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

	m.evaluationsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "evaluations_submitted_total",
		Help: "Partner evaluations accepted and persisted",
	})
	m.evaluationsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "evaluations_duplicate_total",
		Help: "Partner evaluation retries recognised by submission id",
	})
	m.signalUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "signal_updates_total",
		Help: "External signal score updates applied",
	})
	m.careScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    "care_score",
		Help:    "Distribution of recomputed care scores",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})
	m.promotions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "promotions_total",
		Help: "Drivers advanced one rung, by source and target level",
	}, []string{"source", "level"})
	m.promotionRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "promotion_rejections_total",
		Help: "Promotion attempts that did not advance the driver, by reason",
	}, []string{"source", "reason"})
	m.versionConflicts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "version_conflicts_total",
		Help: "Optimistic concurrency conflicts detected on progression writes",
	}, []string{"operation"})
	m.driversEnrolled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "drivers_enrolled_total",
		Help: "Drivers enrolled into the ladder",
	})
	m.driversTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "drivers",
		Help: "Active drivers tracked by the engine",
	})
	m.driversPerLevel = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "drivers_per_level",
		Help: "Active drivers at each ladder rank",
	}, []string{"rank"})
	m.ladderLevels = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "ladder_levels",
		Help: "Number of levels in the current ladder",
	})
	m.ladderReplacements = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "ladder_replacements_total",
		Help: "Administrator ladder replacements",
	})

	m.batchRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "batch_runs_total",
		Help: "Batch recompute passes, by outcome",
	}, []string{"outcome"})
	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    "batch_duration_milliseconds",
		Help:    "Wall time of batch recompute passes",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	m.batchLastProcessed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "batch_last_processed",
		Help: "Drivers processed by the last batch pass",
	})
	m.batchLastPromoted = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "batch_last_promoted",
		Help: "Drivers promoted by the last batch pass",
	})
	m.batchLastUnchanged = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "batch_last_unchanged",
		Help: "Drivers left unchanged by the last batch pass",
	})
	m.batchLastSkipped = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "batch_last_skipped",
		Help: "Drivers omitted from the last batch pass because its deadline elapsed",
	})
	m.batchLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "batch_last_finished_unix",
		Help: "Unix time the last batch pass finished",
	})

	m.storeOperationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    "store_operation_latency_milliseconds",
		Help:    "Progression store latency by backend and operation",
		Buckets: latencyBuckets,
	}, []string{"backend", "operation"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "store_errors_total",
		Help: "Progression store failures by backend and operation",
	}, []string{"backend", "operation"})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "queue_capacity",
		Help: "Capacity of the current batch job queue",
	})
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "queue_size",
		Help: "Jobs waiting in the batch job queue",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "queue_enqueue_errors_total",
		Help: "Batch jobs rejected by the queue",
	})
	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "worker_active_count",
		Help: "Batch workers currently running",
	})
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    "worker_processing_latency_milliseconds",
		Help:    "Per-driver processing latency inside batch workers",
		Buckets: latencyBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "errors_by_component_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "errors_by_endpoint_total",
		Help: "HTTP errors by endpoint, method and type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "system_memory_usage_bytes",
		Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: "system_goroutine_count",
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    "system_gc_pause_time_milliseconds",
		Help:    "Average GC pause time in milliseconds",
		Buckets: latencyBuckets,
	})
}

// Progression metrics.

// RecordEvaluationSubmitted counts a persisted partner evaluation.
func RecordEvaluationSubmitted() {
	globalManager.evaluationsSubmitted.Inc()
}

// RecordEvaluationDuplicate counts a replayed evaluation submission.
func RecordEvaluationDuplicate() {
	globalManager.evaluationsDuplicate.Inc()
}

// RecordSignalUpdate counts an applied external signal update.
func RecordSignalUpdate() {
	globalManager.signalUpdates.Inc()
}

// RecordCareScore observes a freshly computed care score.
func RecordCareScore(score int) {
	globalManager.careScore.Observe(float64(score))
}

// RecordPromotion counts a one-rung promotion. source is "single" or "batch".
func RecordPromotion(source, level string) {
	globalManager.promotions.WithLabelValues(source, level).Inc()
}

// RecordPromotionRejected counts a promotion attempt that left the driver in place.
func RecordPromotionRejected(source, reason string) {
	globalManager.promotionRejections.WithLabelValues(source, reason).Inc()
}

// RecordVersionConflict counts an optimistic concurrency conflict.
func RecordVersionConflict(operation string) {
	globalManager.versionConflicts.WithLabelValues(operation).Inc()
}

// RecordDriverEnrolled counts a new enrolment.
func RecordDriverEnrolled() {
	globalManager.driversEnrolled.Inc()
}

// UpdateDriversTotal sets the number of active drivers.
func UpdateDriversTotal(count int) {
	globalManager.driversTotal.Set(float64(count))
}

// UpdateDriversPerLevel replaces the per-rank driver gauges.
func UpdateDriversPerLevel(counts map[int]int) {
	globalManager.driversPerLevel.Reset()
	for rank, n := range counts {
		globalManager.driversPerLevel.WithLabelValues(strconv.Itoa(rank)).Set(float64(n))
	}
}

// UpdateLadderLevels sets the size of the active ladder.
func UpdateLadderLevels(count int) {
	globalManager.ladderLevels.Set(float64(count))
}

// RecordLadderReplaced counts an administrator ladder replacement.
func RecordLadderReplaced() {
	globalManager.ladderReplacements.Inc()
}

// Batch metrics.

// RecordBatchRun records the outcome of a batch pass.
func RecordBatchRun(outcome string, duration time.Duration, processed, promoted, unchanged, skipped int) {
	globalManager.batchRuns.WithLabelValues(outcome).Inc()
	globalManager.batchDuration.Observe(float64(duration.Milliseconds()))
	globalManager.batchLastProcessed.Set(float64(processed))
	globalManager.batchLastPromoted.Set(float64(promoted))
	globalManager.batchLastUnchanged.Set(float64(unchanged))
	globalManager.batchLastSkipped.Set(float64(skipped))
	globalManager.batchLastUnix.Set(float64(time.Now().Unix()))
}

// Store metrics.

// RecordStoreLatency observes a store operation latency in milliseconds.
func RecordStoreLatency(backend, operation string, latencyMs float64) {
	globalManager.storeOperationLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(backend, operation string) {
	globalManager.storeErrors.WithLabelValues(backend, operation).Inc()
}

// Queue and worker metrics.

// UpdateQueueCapacity sets the job queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the number of queued jobs.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of running batch workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes per-driver processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Configure rebuilds the global manager on a fresh registry. Call it once at
// startup, before anything records or serves metrics.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}

// GetRegistry returns the registry all engine metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval reports how often the global gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}
