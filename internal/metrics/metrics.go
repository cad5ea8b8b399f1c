// Package metrics exposes Prometheus instrumentation for the credit service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	creditsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditd",
		Name:      "credits_granted_total",
		Help:      "Credits granted, labeled by transaction type.",
	}, []string{"type"})

	consumeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditd",
		Name:      "consume_requests_total",
		Help:      "Consume attempts, labeled by outcome.",
	}, []string{"outcome"})

	creditsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditd",
		Name:      "credits_consumed_total",
		Help:      "Credits consumed, labeled by provider and operation.",
	}, []string{"provider", "operation"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creditd",
		Name:      "http_requests_total",
		Help:      "HTTP requests, labeled by method, route, and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "creditd",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// RecordGrant counts a balance-increasing transaction.
func RecordGrant(txType string, amount int64) {
	creditsGranted.WithLabelValues(txType).Add(float64(amount))
}

// RecordConsume counts one consume attempt and, when it succeeded, the
// credits it burned.
func RecordConsume(provider, operation string, amount int64, consumed bool) {
	outcome := "insufficient"
	if consumed {
		outcome = "consumed"
		creditsConsumed.WithLabelValues(provider, operation).Add(float64(amount))
	}
	consumeRequests.WithLabelValues(outcome).Inc()
}

// GinMiddleware instruments every request with a counter and a latency
// histogram. The route label uses the matched template, not the raw path, so
// per-user URLs do not explode cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
