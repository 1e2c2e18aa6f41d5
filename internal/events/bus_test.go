package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeviceSelectedEvent, 1)

	unsub := bus.Subscribe(func(e DeviceSelectedEvent) {
		received <- e
	})
	defer unsub()

	event := DeviceSelectedEvent{
		DeviceID:   "video0",
		DeviceName: "test",
		DevicePath: "/dev/video0",
		Timestamp:  "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.DevicePath != event.DevicePath {
		t.Errorf("Expected device_path %s, got %s", event.DevicePath, got.DevicePath)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan GraphRebuiltEvent, 1)
	received2 := make(chan GraphRebuiltEvent, 1)

	unsub1 := bus.Subscribe(func(e GraphRebuiltEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e GraphRebuiltEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(GraphRebuiltEvent{BuildID: "b1", Stages: []string{"Preprocessing"}})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan SetupFailedEvent, 1)

	unsub := bus.Subscribe(func(e SetupFailedEvent) {
		received <- e
	})

	bus.Publish(SetupFailedEvent{DeviceID: "video0"})
	<-received

	unsub()

	bus.Publish(SetupFailedEvent{DeviceID: "video1"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	stateReceived := make(chan bool, 1)
	rateReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ PipelineStateChangedEvent) {
		stateReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ FrameRateEvent) {
		rateReceived <- true
	})
	defer unsub2()

	bus.Publish(PipelineStateChangedEvent{From: "stopped", To: "running"})
	<-stateReceived

	select {
	case <-rateReceived:
		t.Fatal("Rate subscriber should NOT have received PipelineStateChangedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	bus.Publish(FrameRateEvent{FPS: 30})
	<-rateReceived

	select {
	case <-stateReceived:
		t.Fatal("State subscriber should NOT have received FrameRateEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_NilPublish(_ *testing.T) {
	var bus *Bus
	bus.Publish(FrameRateEvent{FPS: 1})
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ DeviceDiscoveryEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(DeviceDiscoveryEvent{
					Action:    "added",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"PipelineStateChanged", PipelineStateChangedEvent{To: "running"}},
		{"DeviceSelected", DeviceSelectedEvent{DeviceID: "video0"}},
		{"FormatNegotiated", FormatNegotiatedEvent{Width: 640}},
		{"GraphRebuilt", GraphRebuiltEvent{BuildID: "b"}},
		{"SetupFailed", SetupFailedEvent{Error: "x"}},
		{"GraphNotice", GraphNoticeEvent{Kind: "error"}},
		{"FrameRate", FrameRateEvent{FPS: 1}},
		{"DeviceDiscovery", DeviceDiscoveryEvent{Action: "added"}},
		{"CommandInvoked", CommandInvokedEvent{CommandID: "effects/invert"}},
		{"LogEntry", LogEntryEvent{Message: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case PipelineStateChangedEvent:
				unsub = bus.Subscribe(func(e PipelineStateChangedEvent) { received <- e })
			case DeviceSelectedEvent:
				unsub = bus.Subscribe(func(e DeviceSelectedEvent) { received <- e })
			case FormatNegotiatedEvent:
				unsub = bus.Subscribe(func(e FormatNegotiatedEvent) { received <- e })
			case GraphRebuiltEvent:
				unsub = bus.Subscribe(func(e GraphRebuiltEvent) { received <- e })
			case SetupFailedEvent:
				unsub = bus.Subscribe(func(e SetupFailedEvent) { received <- e })
			case GraphNoticeEvent:
				unsub = bus.Subscribe(func(e GraphNoticeEvent) { received <- e })
			case FrameRateEvent:
				unsub = bus.Subscribe(func(e FrameRateEvent) { received <- e })
			case DeviceDiscoveryEvent:
				unsub = bus.Subscribe(func(e DeviceDiscoveryEvent) { received <- e })
			case CommandInvokedEvent:
				unsub = bus.Subscribe(func(e CommandInvokedEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(FormatNegotiatedEvent{
		DeviceID:     "video0",
		Width:        640,
		Height:       480,
		BitsPerPixel: 24,
		Origin:       "persisted",
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	for _, key := range []string{"device_id", "width", "height", "bpp", "origin"} {
		if _, ok := result[key]; !ok {
			t.Errorf("Expected key %q in %s", key, data)
		}
	}
	if _, ok := result["native"]; ok {
		t.Error("Expected empty native to be omitted")
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[GraphNoticeEvent](bus, ch)
	defer unsub()

	event := GraphNoticeEvent{Kind: "error", Message: "stream stopped"}
	bus.Publish(event)

	received := <-ch
	notice, ok := received.(GraphNoticeEvent)
	if !ok {
		t.Fatalf("Expected GraphNoticeEvent, got %T", received)
	}
	if notice.Message != event.Message {
		t.Errorf("Expected message %s, got %s", event.Message, notice.Message)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[FrameRateEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(FrameRateEvent{FPS: 30})
		done <- true
	}()

	<-done // Should complete without blocking
}

func TestSubscribeStream(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)
	f := SubscribeStream(bus, ch)
	defer f.Close()

	bus.Publish(LogEntryEvent{Message: "not streamed"})
	bus.Publish(CommandInvokedEvent{CommandID: "options/negate", Checked: true})
	bus.Publish(FrameRateEvent{FPS: 25})

	got := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-ch:
			switch e.(type) {
			case CommandInvokedEvent:
				got["command"] = true
			case FrameRateEvent:
				got["rate"] = true
			default:
				t.Errorf("unexpected event %T", e)
			}
		case <-deadline:
			t.Fatalf("timeout, received %v", got)
		}
	}
}

func TestForwarderCountsDropped(t *testing.T) {
	bus := New()
	f := Forward[FrameRateEvent](NewForwarder(make(chan any)), bus)
	defer f.Close()

	for i := 0; i < 3; i++ {
		bus.Publish(FrameRateEvent{FPS: float64(i)})
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.Dropped() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 dropped events, got %d", f.Dropped())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestForwarderNilBus(t *testing.T) {
	f := SubscribeStream(nil, make(chan any, 1))
	f.Close()
	if f.Dropped() != 0 {
		t.Error("expected nothing forwarded from a nil bus")
	}
}
