// Package metrics provides Prometheus metrics for the pulse scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Extraction
	waveformsProcessed *prometheus.CounterVec
	extractionLatency  prometheus.Histogram
	estimatesStored    prometheus.Gauge

	// Vitals collaborator
	vitalsRequests *prometheus.CounterVec
	vitalsLatency  prometheus.Histogram
	vitalsRetries  prometheus.Counter

	// Scoring
	subjectsScored   *prometheus.CounterVec
	scoringLatency   prometheus.Histogram
	bpResolutions    *prometheus.CounterVec
	successOverrides prometheus.Counter
	resultsRanked    prometheus.Gauge
	batchDuration    *prometheus.HistogramVec

	// Queue and workers
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueueFails *prometheus.CounterVec
	workerCount       prometheus.Gauge
	workerErrors      prometheus.Counter

	// Heart-rate cursors
	openCursors prometheus.Gauge

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

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulse",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	msBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	m.waveformsProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "extractor",
		Name: "waveforms_total",
		Help: "Waveform files processed by outcome (estimated, insufficient_signal, skipped)",
	}, []string{"outcome"})
	m.extractionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "extractor",
		Name:    "waveform_latency_ms",
		Help:    "Time to parse a waveform and estimate blood pressure in milliseconds",
		Buckets: msBuckets,
	})
	m.estimatesStored = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "extractor",
		Name: "estimates_stored",
		Help: "Number of blood pressure estimates in the lookup snapshot",
	})

	m.vitalsRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "vitals",
		Name: "requests_total",
		Help: "Vitals collaborator calls by outcome",
	}, []string{"operation", "outcome"})
	m.vitalsLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "vitals",
		Name:    "request_latency_ms",
		Help:    "Vitals collaborator call latency including retries in milliseconds",
		Buckets: msBuckets,
	})
	m.vitalsRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "vitals",
		Name: "retries_total",
		Help: "Retries issued against the vitals collaborator",
	})

	m.subjectsScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "subjects_total",
		Help: "Subjects processed by the score engine by outcome",
	}, []string{"outcome"})
	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "subject_latency_ms",
		Help:    "Per-subject scoring latency including the vitals fetch in milliseconds",
		Buckets: msBuckets,
	})
	m.bpResolutions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "bp_resolutions_total",
		Help: "Blood pressure lookups by source (estimated or default)",
	}, []string{"source"})
	m.successOverrides = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "success_overrides_total",
		Help: "Success scores forced to zero by the hypertensive crisis override",
	})
	m.resultsRanked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "results_ranked",
		Help: "Number of results in the latest ranked set",
	})
	m.batchDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "batch",
		Name:    "duration_seconds",
		Help:    "Batch run duration by kind (extract, score)",
		Buckets: m.histogramBuckets,
	}, []string{"kind"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "size",
		Help: "Current number of queued scoring jobs",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "capacity",
		Help: "Maximum number of queued scoring jobs",
	})
	m.queueEnqueueFails = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "enqueue_failures_total",
		Help: "Rejected enqueue attempts by reason",
	}, []string{"reason"})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "worker",
		Name: "count",
		Help: "Number of scoring workers",
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "worker",
		Name: "errors_total",
		Help: "Scoring jobs that ended in an error",
	})

	m.openCursors = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "stream",
		Name: "open_cursors",
		Help: "Open heart-rate stream cursors",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name:    "request_duration_ms",
		Help:    "HTTP request latency in milliseconds",
		Buckets: msBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "errors_total",
		Help: "HTTP error responses by endpoint and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_bytes",
		Help: "Allocated heap bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines",
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name:    "gc_pause_ms",
		Help:    "Average GC pause in milliseconds",
		Buckets: msBuckets,
	})
}

// Extraction

func RecordWaveform(outcome string)             { globalManager.waveformsProcessed.WithLabelValues(outcome).Inc() }
func RecordExtractionLatency(latencyMs float64) { globalManager.extractionLatency.Observe(latencyMs) }
func UpdateEstimatesStored(count int)           { globalManager.estimatesStored.Set(float64(count)) }

// Vitals

func RecordVitalsRequest(operation, outcome string) {
	globalManager.vitalsRequests.WithLabelValues(operation, outcome).Inc()
}
func RecordVitalsLatency(latencyMs float64) { globalManager.vitalsLatency.Observe(latencyMs) }
func RecordVitalsRetry()                    { globalManager.vitalsRetries.Inc() }

// Scoring

func RecordSubjectScored(outcome string)     { globalManager.subjectsScored.WithLabelValues(outcome).Inc() }
func RecordScoringLatency(latencyMs float64) { globalManager.scoringLatency.Observe(latencyMs) }
func RecordBPResolution(source string)       { globalManager.bpResolutions.WithLabelValues(source).Inc() }
func RecordSuccessOverride()                 { globalManager.successOverrides.Inc() }
func UpdateResultsRanked(count int)          { globalManager.resultsRanked.Set(float64(count)) }
func RecordBatchDuration(kind string, seconds float64) {
	globalManager.batchDuration.WithLabelValues(kind).Observe(seconds)
}

// Queue and workers

func UpdateQueueSize(size int)         { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func RecordEnqueueFailure(reason string) {
	globalManager.queueEnqueueFails.WithLabelValues(reason).Inc()
}
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }
func RecordWorkerError()          { globalManager.workerErrors.Inc() }

// Cursors

func UpdateOpenCursors(count int) { globalManager.openCursors.Set(float64(count)) }

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System

func UpdateSystemMemoryUsage(bytes uint64)  { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int)  { globalManager.systemGoroutineCount.Set(float64(count)) }
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
