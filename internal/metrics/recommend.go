package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation Prometheus metrics.
var (
	FeedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedrank",
			Name:      "feed_requests_total",
			Help:      "Total feed requests by serving mode",
		},
		[]string{"mode"}, // "personalized" / "cold_start"
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedrank",
			Name:      "index_build_duration_seconds",
			Help:      "Post embedding index build duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	IndexedPosts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "feedrank",
			Name:      "indexed_posts",
			Help:      "Number of posts in the published embedding index",
		},
	)
)

// RegisterRecommendMetrics registers recommendation metrics. Must be called once from main.
func RegisterRecommendMetrics() {
	prometheus.MustRegister(FeedRequestsTotal, IndexBuildDuration, IndexedPosts)
}
