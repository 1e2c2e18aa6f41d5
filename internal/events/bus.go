package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// A nil bus drops the event.
// Usage: bus.Publish(DeviceSelectedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case PipelineStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceSelectedEvent:
		event.Publish(b.dispatcher, e)
	case FormatNegotiatedEvent:
		event.Publish(b.dispatcher, e)
	case GraphRebuiltEvent:
		event.Publish(b.dispatcher, e)
	case SetupFailedEvent:
		event.Publish(b.dispatcher, e)
	case GraphNoticeEvent:
		event.Publish(b.dispatcher, e)
	case FrameRateEvent:
		event.Publish(b.dispatcher, e)
	case DeviceDiscoveryEvent:
		event.Publish(b.dispatcher, e)
	case CommandInvokedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FrameRateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(PipelineStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceSelectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FormatNegotiatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(GraphRebuiltEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SetupFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(GraphNoticeEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameRateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceDiscoveryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CommandInvokedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
