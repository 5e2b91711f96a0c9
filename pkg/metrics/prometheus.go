// Package metrics provides Prometheus metrics for the sailtrack pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default buckets: downloads in milliseconds, whole runs in seconds.
var (
	defaultFetchBuckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // bucket defaults
	defaultRunBuckets   = []float64{1, 5, 15, 30, 60, 120, 300, 600}                     //nolint:gochecknoglobals // bucket defaults
)

// Manager owns every collector exposed by the process.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	fetchBuckets     []float64
	runBuckets       []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Fetch
	snapshotsPlanned prometheus.Counter
	snapshotsFetched prometheus.Counter
	snapshotsCached  prometheus.Counter
	fetchErrors      *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	fetchBytes       prometheus.Counter

	// Parse
	snapshotsParsed prometheus.Counter
	parseErrors     *prometheus.CounterVec
	rowsParsed      prometheus.Counter
	rowsRejected    *prometheus.CounterVec

	// Build and export
	boatsTracked      prometheus.Gauge
	trajectoriesBuilt prometheus.Gauge
	exports           *prometheus.CounterVec
	sinkWrites        *prometheus.CounterVec

	// Runs
	runDuration prometheus.Histogram
	lastRunUnix prometheus.Gauge
	runs        *prometheus.CounterVec

	// Queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	workerActive     prometheus.Gauge
	workerBusy       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sailtrack",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		fetchBuckets:     defaultFetchBuckets,
		runBuckets:       defaultRunBuckets,
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
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.snapshotsPlanned = auto.NewCounter(m.counterOpts("snapshots_planned_total", "Snapshot identifiers planned across runs"))
	m.snapshotsFetched = auto.NewCounter(m.counterOpts("snapshots_fetched_total", "Snapshots downloaded and cached"))
	m.snapshotsCached = auto.NewCounter(m.counterOpts("snapshots_cached_total", "Snapshots already present in the local cache"))
	m.fetchErrors = auto.NewCounterVec(m.counterOpts("fetch_errors_total", "Snapshot fetch failures by kind"), []string{"kind"})
	m.fetchLatency = auto.NewHistogram(m.histogramOpts("fetch_latency_milliseconds", "Snapshot download latency in milliseconds", m.fetchBuckets))
	m.fetchBytes = auto.NewCounter(m.counterOpts("fetch_bytes_total", "Bytes downloaded from the snapshot source"))

	m.snapshotsParsed = auto.NewCounter(m.counterOpts("snapshots_parsed_total", "Snapshots decoded into tables"))
	m.parseErrors = auto.NewCounterVec(m.counterOpts("parse_errors_total", "Snapshots that could not be parsed, by kind"), []string{"kind"})
	m.rowsParsed = auto.NewCounter(m.counterOpts("rows_parsed_total", "Boat rows accepted from snapshots"))
	m.rowsRejected = auto.NewCounterVec(m.counterOpts("rows_rejected_total", "Boat rows dropped while parsing, by reason"), []string{"reason"})

	m.boatsTracked = auto.NewGauge(m.gaugeOpts("boats_tracked", "Distinct boats in the last aggregated dataset"))
	m.trajectoriesBuilt = auto.NewGauge(m.gaugeOpts("trajectories_built", "Trajectories produced by the last run"))
	m.exports = auto.NewCounterVec(m.counterOpts("exports_total", "Layer exports by format and status"), []string{"format", "status"})
	m.sinkWrites = auto.NewCounterVec(m.counterOpts("sink_writes_total", "Archive and notification writes by sink and status"), []string{"sink", "status"})

	m.runDuration = auto.NewHistogram(m.histogramOpts("run_duration_seconds", "Pipeline run duration in seconds", m.runBuckets))
	m.lastRunUnix = auto.NewGauge(m.gaugeOpts("last_run_unix", "Unix time of the last completed run"))
	m.runs = auto.NewCounterVec(m.counterOpts("runs_total", "Pipeline runs by outcome"), []string{"status"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Fetch jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum fetch queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Fetch queue utilization (size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Fetch jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Fetch jobs dequeued"))
	m.queueRejected = auto.NewCounterVec(m.counterOpts("queue_rejected_total", "Fetch jobs refused by the queue, by reason"), []string{"reason"})
	m.workerActive = auto.NewGauge(m.gaugeOpts("worker_active_count", "Fetch workers running"))
	m.workerBusy = auto.NewGauge(m.gaugeOpts("worker_busy_count", "Fetch workers currently processing a job"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP error responses by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets))
}

// RecordSnapshotsPlanned adds n planned identifiers.
func RecordSnapshotsPlanned(n int) {
	globalManager.snapshotsPlanned.Add(float64(n))
}

// RecordSnapshotFetched records a successful download of size bytes.
func RecordSnapshotFetched(bytes int, latencyMs float64) {
	globalManager.snapshotsFetched.Inc()
	globalManager.fetchBytes.Add(float64(bytes))
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordSnapshotCached records an identifier already present in the cache.
func RecordSnapshotCached() {
	globalManager.snapshotsCached.Inc()
}

// RecordFetchError records a failed fetch of the given kind.
func RecordFetchError(kind string) {
	globalManager.fetchErrors.WithLabelValues(kind).Inc()
}

// RecordSnapshotParsed records a parsed snapshot and its accepted rows.
func RecordSnapshotParsed(rows int) {
	globalManager.snapshotsParsed.Inc()
	globalManager.rowsParsed.Add(float64(rows))
}

// RecordParseError records a snapshot skipped while parsing.
func RecordParseError(kind string) {
	globalManager.parseErrors.WithLabelValues(kind).Inc()
}

// RecordRowRejected records a dropped row.
func RecordRowRejected(reason string) {
	globalManager.rowsRejected.WithLabelValues(reason).Inc()
}

// UpdateBoatsTracked sets the number of distinct boats.
func UpdateBoatsTracked(n int) {
	globalManager.boatsTracked.Set(float64(n))
}

// UpdateTrajectoriesBuilt sets the number of trajectories from the last run.
func UpdateTrajectoriesBuilt(n int) {
	globalManager.trajectoriesBuilt.Set(float64(n))
}

// RecordExport records one layer export.
func RecordExport(format, status string) {
	globalManager.exports.WithLabelValues(format, status).Inc()
}

// RecordSinkWrite records one archive or notification write.
func RecordSinkWrite(sink, status string) {
	globalManager.sinkWrites.WithLabelValues(sink, status).Inc()
}

// RecordRun records a finished run.
func RecordRun(status string, d time.Duration, finished time.Time) {
	globalManager.runs.WithLabelValues(status).Inc()
	globalManager.runDuration.Observe(d.Seconds())
	globalManager.lastRunUnix.Set(float64(finished.Unix()))
}

// UpdateQueueSize sets the number of queued fetch jobs.
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
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected records a refused enqueue.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry served at /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
