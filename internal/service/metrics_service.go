package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	validations           *prometheus.CounterVec
	violations            *prometheus.CounterVec
	optimizerRuns         *prometheus.CounterVec
	optimizerActive       prometheus.Gauge
	optimizerDuration     prometheus.Histogram
	optimizerIterations   prometheus.Histogram
	optimizerHardScore    prometheus.Gauge
	optimizerImprovements prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	validationsAccepted  uint64
	validationsRejected  uint64
	optimizationsStarted uint64
	optimizationsActive  int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_validations_total",
		Help: "Placement validations by outcome",
	}, []string{"outcome"})

	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_violations_total",
		Help: "Violations reported by placement validation",
	}, []string{"type"})

	optimizerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_optimizer_runs_total",
		Help: "Optimizer runs by final status",
	}, []string{"status"})

	optimizerActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_optimizer_active_runs",
		Help: "Optimizer runs currently executing",
	})

	optimizerDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_optimizer_duration_seconds",
		Help:    "Wall time of optimizer runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	optimizerIterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_optimizer_iterations",
		Help:    "Iterations performed per optimizer run",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	})

	optimizerHardScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_optimizer_last_hard_score",
		Help: "Hard score of the most recently finished run",
	})

	optimizerImprovements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_optimizer_improvements_total",
		Help: "Strict best-score improvements found by the optimizer",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, dbQueryDuration,
		validations, violations, optimizerRuns, optimizerActive, optimizerDuration, optimizerIterations, optimizerHardScore, optimizerImprovements,
		goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:              registry,
		handler:               handler,
		requestDuration:       requestDuration,
		requestTotal:          requestTotal,
		cacheLatency:          cacheLatency,
		cacheWrite:            cacheWrite,
		cacheHitRatio:         cacheHitRatio,
		cacheHits:             cacheHits,
		cacheMisses:           cacheMisses,
		dbQueryDuration:       dbQueryDuration,
		validations:           validations,
		violations:            violations,
		optimizerRuns:         optimizerRuns,
		optimizerActive:       optimizerActive,
		optimizerDuration:     optimizerDuration,
		optimizerIterations:   optimizerIterations,
		optimizerHardScore:    optimizerHardScore,
		optimizerImprovements: optimizerImprovements,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordValidation counts a placement validation and the violations it produced.
func (m *MetricsService) RecordValidation(result models.ValidationResult) {
	if m == nil {
		return
	}
	if result.Valid {
		m.validations.WithLabelValues("accepted").Inc()
		atomic.AddUint64(&m.validationsAccepted, 1)
		return
	}
	m.validations.WithLabelValues("rejected").Inc()
	atomic.AddUint64(&m.validationsRejected, 1)
	for _, v := range result.Violations {
		m.violations.WithLabelValues(string(v.Type)).Inc()
	}
}

// OptimizationStarted marks a run as executing.
func (m *MetricsService) OptimizationStarted() {
	if m == nil {
		return
	}
	m.optimizerActive.Inc()
	atomic.AddUint64(&m.optimizationsStarted, 1)
	atomic.AddInt64(&m.optimizationsActive, 1)
}

// OptimizationFinished records the outcome of a run.
func (m *MetricsService) OptimizationFinished(status models.OptimizationStatus, result *OptimizationResult) {
	if m == nil {
		return
	}
	m.optimizerActive.Dec()
	atomic.AddInt64(&m.optimizationsActive, -1)
	m.optimizerRuns.WithLabelValues(string(status)).Inc()
	if result == nil {
		return
	}
	m.optimizerDuration.Observe(result.Elapsed.Seconds())
	m.optimizerIterations.Observe(float64(result.Iterations))
	m.optimizerHardScore.Set(float64(result.Score.Hard))
	m.optimizerImprovements.Add(float64(result.Improvements))
}

// Snapshot returns aggregated metrics suitable for the metrics summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		ValidationsAccepted:      atomic.LoadUint64(&m.validationsAccepted),
		ValidationsRejected:      atomic.LoadUint64(&m.validationsRejected),
		OptimizationsStarted:     atomic.LoadUint64(&m.optimizationsStarted),
		OptimizationsActive:      atomic.LoadInt64(&m.optimizationsActive),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
