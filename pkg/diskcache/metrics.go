package diskcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by bucket.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellfire_cache_hits_total",
			Help: "Total number of disk cache hits",
		},
		[]string{"bucket"},
	)

	// CacheMisses tracks cache misses by bucket.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellfire_cache_misses_total",
			Help: "Total number of disk cache misses",
		},
		[]string{"bucket"},
	)

	// CacheExpired tracks entries discarded on load because their TTL had
	// elapsed.
	CacheExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellfire_cache_expired_total",
			Help: "Total number of cache entries expired on access",
		},
		[]string{"bucket"},
	)

	// CacheEvictedFiles tracks files removed by trim passes.
	CacheEvictedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellfire_cache_evicted_files_total",
			Help: "Total number of cache files evicted by trim passes",
		},
		[]string{"bucket"},
	)

	// CacheEvictedBytes tracks bytes reclaimed by trim passes.
	CacheEvictedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellfire_cache_evicted_bytes_total",
			Help: "Total number of bytes reclaimed by trim passes",
		},
		[]string{"bucket"},
	)

	// CacheBytesUsed tracks the current on-disk footprint by bucket.
	CacheBytesUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hellfire_cache_bytes_used",
			Help: "Current disk cache footprint in bytes",
		},
		[]string{"bucket"},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellfire_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "store", "load", "clear", "trim", "scan"
	)
)
