package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videofx",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP API requests by operation and status code",
	}, []string{"operation", "code"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "videofx",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP API request latency by operation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// ObserveAPIRequest records one completed API request. Long-lived event
// streams are counted but not timed.
func ObserveAPIRequest(operation string, status int, d time.Duration, streaming bool) {
	apiRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	if !streaming {
		apiRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
