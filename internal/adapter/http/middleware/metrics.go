package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_http_requests_total",
		Help: "HTTP requests processed, by method, route, and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	tokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_tokens_consumed_total",
		Help: "Prepaid tokens debited, by route.",
	}, []string{"route"})

	authRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_auth_rejections_total",
		Help: "Bearer auth rejections, by reason (missing, invalid).",
	}, []string{"reason"})

	rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_ratelimit_rejections_total",
		Help: "Rate limit rejections, by window (minute, hour, day, ip).",
	}, []string{"window"})
)

// Metrics records request counts and latency. Uses the route template
// (c.FullPath) rather than the raw URL to keep label cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
