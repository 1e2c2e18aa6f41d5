package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/videofx/internal/interceptors"
)

var (
	framesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videofx",
		Subsystem: "frames",
		Name:      "delivered_total",
		Help:      "Frames that passed every interceptor of a stage",
	}, []string{"category"})

	framesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videofx",
		Subsystem: "frames",
		Name:      "failed_total",
		Help:      "Frames aborted by an interceptor error",
	}, []string{"category"})
)

// FrameStats is a point-in-time copy of the frame counters.
type FrameStats struct {
	Frames uint64
	Faults uint64
}

// FrameObserver counts frames on the delivery path. It is safe to call from
// engine goroutines.
type FrameObserver struct {
	frames atomic.Uint64
	faults atomic.Uint64
}

// NewFrameObserver creates an observer with zeroed counters.
func NewFrameObserver() *FrameObserver {
	return &FrameObserver{}
}

// FrameDelivered records a frame that passed a stage.
func (o *FrameObserver) FrameDelivered(c interceptors.Category) {
	o.frames.Add(1)
	framesDelivered.WithLabelValues(string(c)).Inc()
}

// FrameFailed records a frame aborted in a stage.
func (o *FrameObserver) FrameFailed(c interceptors.Category, _ error) {
	o.faults.Add(1)
	framesFailed.WithLabelValues(string(c)).Inc()
}

// Stats returns the current counters.
func (o *FrameObserver) Stats() FrameStats {
	return FrameStats{
		Frames: o.frames.Load(),
		Faults: o.faults.Load(),
	}
}
