package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indiverse_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records store latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indiverse_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FeedMutations counts feed writes by operation and result.
	FeedMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indiverse_feed_mutations_total",
		Help: "Total number of feed mutations by operation and result",
	}, []string{"operation", "result"})

	// FeedRetries counts optimistic-concurrency retries by operation.
	FeedRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indiverse_feed_optimistic_retries_total",
		Help: "Total number of version-conflict retries on post updates",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by cache name and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indiverse_cache_lookups_total",
		Help: "Total number of cache lookups by cache and result",
	}, []string{"cache", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordFeedMutation counts a finished feed mutation.
func RecordFeedMutation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	FeedMutations.WithLabelValues(operation, result).Inc()
}
