// Package metrics provides Prometheus metrics for the liveboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the liveboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Rating ledger
	resultsSubmitted  prometheus.Counter
	submitRejections  *prometheus.CounterVec
	leaderboardReads  prometheus.Counter
	leaderboardErrors prometheus.Counter

	// Archival engine
	sweepRuns       prometheus.Counter
	eventsArchived  prometheus.Counter
	archiveFailures prometheus.Counter
	archiveDuration prometheus.Histogram

	// Prize distributor
	rewardsGranted prometheus.Counter
	rewardsClaimed prometheus.Counter
	claimMisses    prometheus.Counter

	// Event metadata cache
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec

	// Export queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Export workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter
	exportsWritten          prometheus.Counter
	exportsDuplicate        prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "liveboard",
		subsystem:        "events",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.resultsSubmitted = m.counter("results_submitted_total", "Total number of accepted result submissions")
	m.submitRejections = m.counterVec("results_rejected_total", "Rejected result submissions by reason", "reason")
	m.leaderboardReads = m.counter("leaderboard_reads_total", "Total number of leaderboard queries served")
	m.leaderboardErrors = m.counter("leaderboard_errors_total", "Total number of failed leaderboard queries")

	m.sweepRuns = m.counter("sweep_runs_total", "Total number of archival sweeps")
	m.eventsArchived = m.counter("archived_total", "Total number of events archived")
	m.archiveFailures = m.counter("archive_failures_total", "Total number of archival attempts rolled back")
	m.archiveDuration = m.histogram("archive_duration_milliseconds", "Duration of a single event archival in milliseconds", m.histogramBuckets)

	m.rewardsGranted = m.counter("rewards_granted_total", "Total number of unclaimed rewards granted")
	m.rewardsClaimed = m.counter("rewards_claimed_total", "Total number of rewards claimed")
	m.claimMisses = m.counter("reward_claim_misses_total", "Claims for rewards that were absent or owned by another user")

	m.cacheHits = m.counterVec("cache_hits_total", "Cache hits by cache name", "cache")
	m.cacheMisses = m.counterVec("cache_misses_total", "Cache misses by cache name", "cache")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "op")

	m.queueSize = m.gauge("export_queue_size", "Current number of archive exports waiting")
	m.queueCapacity = m.gauge("export_queue_capacity", "Maximum export queue capacity")
	m.queueUtilization = m.gauge("export_queue_utilization_ratio", "Export queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("export_queue_enqueue_total", "Total number of exports enqueued")
	m.queueDequeueRate = m.counter("export_queue_dequeue_total", "Total number of exports dequeued")
	m.queueEnqueueErrors = m.counter("export_queue_enqueue_errors_total", "Total number of rejected export enqueues")

	m.workerCount = m.gauge("export_worker_count", "Number of export workers")
	m.workerProcessingLatency = m.histogram("export_worker_latency_milliseconds", "Export write latency in milliseconds", m.histogramBuckets)
	m.workerErrorRate = m.counter("export_worker_errors_total", "Total number of failed export writes")
	m.exportsWritten = m.counter("exports_written_total", "Total number of archive files written")
	m.exportsDuplicate = m.counter("exports_duplicate_total", "Total number of exports skipped as duplicates")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordResultSubmitted increments the accepted submissions counter.
func RecordResultSubmitted() {
	globalManager.resultsSubmitted.Inc()
}

// RecordResultRejected counts a rejected submission, e.g. reason "event_closed".
func RecordResultRejected(reason string) {
	globalManager.submitRejections.WithLabelValues(reason).Inc()
}

// RecordLeaderboardRead increments the leaderboard query counter.
func RecordLeaderboardRead() {
	globalManager.leaderboardReads.Inc()
}

// RecordLeaderboardError increments the leaderboard errors counter.
func RecordLeaderboardError() {
	globalManager.leaderboardErrors.Inc()
}

// RecordSweep increments the sweep counter.
func RecordSweep() {
	globalManager.sweepRuns.Inc()
}

// RecordEventArchived records a committed archival and its duration.
func RecordEventArchived(durationMs float64) {
	globalManager.eventsArchived.Inc()
	globalManager.archiveDuration.Observe(durationMs)
}

// RecordArchiveFailure increments the archival failure counter.
func RecordArchiveFailure() {
	globalManager.archiveFailures.Inc()
}

// RecordRewardsGranted adds n granted rewards.
func RecordRewardsGranted(n int) {
	globalManager.rewardsGranted.Add(float64(n))
}

// RecordRewardClaimed increments the claimed rewards counter.
func RecordRewardClaimed() {
	globalManager.rewardsClaimed.Inc()
}

// RecordClaimMiss increments the claim miss counter.
func RecordClaimMiss() {
	globalManager.claimMisses.Inc()
}

// RecordCacheHit counts a hit on the named cache.
func RecordCacheHit(cache string) {
	globalManager.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss counts a miss on the named cache.
func RecordCacheMiss(cache string) {
	globalManager.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordExportWritten increments the written exports counter.
func RecordExportWritten() {
	globalManager.exportsWritten.Inc()
}

// RecordExportDuplicate increments the duplicate exports counter.
func RecordExportDuplicate() {
	globalManager.exportsDuplicate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
