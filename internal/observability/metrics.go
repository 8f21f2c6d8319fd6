// Package observability provides metrics and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgram_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records query latency by outcome.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapgram_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	// MediaUploads counts media intake attempts by result.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgram_media_uploads_total",
		Help: "Total media uploads by result",
	}, []string{"result"})

	// MediaUploadBytes records the size of accepted uploads.
	MediaUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapgram_media_upload_bytes",
		Help:    "Size of accepted media uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(16<<10, 2, 10),
	})

	// LikeToggles counts like toggles by resulting action.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgram_like_toggles_total",
		Help: "Total like toggles by action",
	}, []string{"action"})

	// EventsPublished counts domain events handed to the publisher backend.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgram_events_published_total",
		Help: "Total domain events published by backend and result",
	}, []string{"backend", "result"})

	// RateLimitRejections counts requests rejected by the Redis rate limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgram_rate_limit_rejections_total",
		Help: "Total requests rejected by rate limiting",
	}, []string{"resource"})
)

// ObserveQuery records one query's latency.
func ObserveQuery(seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DatabaseQueryLatency.WithLabelValues(result).Observe(seconds)
}
