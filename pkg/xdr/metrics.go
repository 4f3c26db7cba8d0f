package xdr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics (registered once).
var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdr_api_requests_total",
			Help: "Total requests sent to the XDR API",
		},
		[]string{"path", "code"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xdr_api_request_duration_seconds",
			Help:    "XDR API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(apiRequests)
	prometheus.MustRegister(apiRequestDuration)
}

func observeRequest(path, code string, d time.Duration) {
	apiRequests.WithLabelValues(path, code).Inc()
	apiRequestDuration.WithLabelValues(path).Observe(d.Seconds())
}
