package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authcore_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	LoginFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_login_failures_total",
		Help: "Failed authentication attempts by reason.",
	}, []string{"reason"})
)
