package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakery_manager",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bakery_manager",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	subscriptionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakery_manager",
			Subsystem: "subscription",
			Name:      "checks_total",
			Help:      "Subscription lookups by outcome (active, inactive, error).",
		},
		[]string{"result"},
	)

	orderCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bakery_manager",
			Subsystem: "orders",
			Name:      "commits_total",
			Help:      "Order draft commits by mode and result.",
		},
		[]string{"mode", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		subscriptionChecks,
		orderCommits,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordSubscriptionCheck counts one lookup; result is active, inactive or error.
func RecordSubscriptionCheck(result string) {
	subscriptionChecks.WithLabelValues(result).Inc()
}

// RecordOrderCommit counts one commit attempt.
func RecordOrderCommit(mode, result string) {
	orderCommits.WithLabelValues(mode, result).Inc()
}
