// Package metrics provides Prometheus metrics for the capture graph and the
// frame processing chain.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// States reported by the pipeline state gauge.
var pipelineStates = []string{"uninitialized", "stopped", "running"}

var (
	pipelineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "videofx",
		Subsystem: "pipeline",
		Name:      "state",
		Help:      "Capture graph state, 1 for the current state",
	}, []string{"state"})

	pipelineRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "videofx",
		Subsystem: "pipeline",
		Name:      "rebuilds_total",
		Help:      "Processing stage rebuilds, including initial builds",
	})

	pipelineRebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "videofx",
		Subsystem: "pipeline",
		Name:      "rebuild_duration_seconds",
		Help:      "Time from stopping delivery to running again",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	pipelineSetupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "videofx",
		Subsystem: "pipeline",
		Name:      "setup_failures_total",
		Help:      "Device selections that failed to build a graph",
	})

	pipelineGraphEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videofx",
		Subsystem: "pipeline",
		Name:      "graph_events_total",
		Help:      "Native graph events drained, by kind",
	}, []string{"kind"})
)

// SetPipelineState marks state as the current pipeline state.
func SetPipelineState(state string) {
	for _, s := range pipelineStates {
		v := 0.0
		if s == state {
			v = 1
		}
		pipelineState.WithLabelValues(s).Set(v)
	}
}

// ObserveRebuild counts one rebuild and records its duration.
func ObserveRebuild(d time.Duration) {
	pipelineRebuilds.Inc()
	pipelineRebuildDuration.Observe(d.Seconds())
}

// IncSetupFailure counts a failed device selection.
func IncSetupFailure() {
	pipelineSetupFailures.Inc()
}

// IncGraphEvent counts one drained native event.
func IncGraphEvent(kind string) {
	pipelineGraphEvents.WithLabelValues(kind).Inc()
}
