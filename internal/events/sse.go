package events

import (
	"sync/atomic"

	"github.com/kelindar/event"
)

// Forwarder copies bus events into a channel for a select-driven consumer
// such as an SSE handler. Publishers never block on it: an event that finds
// the channel full is dropped and counted.
type Forwarder struct {
	ch      chan<- any
	unsubs  []func()
	dropped atomic.Uint64
}

// NewForwarder creates a forwarder into ch. Add event types with Forward.
func NewForwarder(ch chan<- any) *Forwarder {
	return &Forwarder{ch: ch}
}

func (f *Forwarder) push(e any) {
	select {
	case f.ch <- e:
	default:
		f.dropped.Add(1)
	}
}

// Forward subscribes f to events of type T on bus. A nil bus forwards
// nothing.
func Forward[T Event](f *Forwarder, bus *Bus) *Forwarder {
	if bus != nil {
		f.unsubs = append(f.unsubs, event.Subscribe(bus.dispatcher, func(e T) { f.push(e) }))
	}
	return f
}

// Dropped returns how many events found the channel full.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Close unsubscribes from every forwarded type.
func (f *Forwarder) Close() {
	for _, unsub := range f.unsubs {
		unsub()
	}
	f.unsubs = nil
}

// SubscribeToChannel forwards a single event type into ch and returns the
// unsubscribe function.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return Forward[T](NewForwarder(ch), bus).Close
}

// SubscribeStream forwards every event type of the control event stream,
// which is all of them except log entries.
func SubscribeStream(bus *Bus, ch chan<- any) *Forwarder {
	f := NewForwarder(ch)
	Forward[PipelineStateChangedEvent](f, bus)
	Forward[DeviceSelectedEvent](f, bus)
	Forward[FormatNegotiatedEvent](f, bus)
	Forward[GraphRebuiltEvent](f, bus)
	Forward[SetupFailedEvent](f, bus)
	Forward[GraphNoticeEvent](f, bus)
	Forward[DeviceDiscoveryEvent](f, bus)
	Forward[CommandInvokedEvent](f, bus)
	Forward[FrameRateEvent](f, bus)
	return f
}
