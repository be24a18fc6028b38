package models

import "time"

// SystemMetrics is a JSON-friendly summary of the service's instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	ValidationsAccepted      uint64    `json:"validations_accepted"`
	ValidationsRejected      uint64    `json:"validations_rejected"`
	OptimizationsStarted     uint64    `json:"optimizations_started"`
	OptimizationsActive      int64     `json:"optimizations_active"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
