package exporters

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events:    make([]events.Event, 0),
		published: make(chan struct{}, 100),
	}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

type fakeStats struct {
	frames atomic.Uint64
	faults atomic.Uint64
}

func (f *fakeStats) Stats() metrics.FrameStats {
	return metrics.FrameStats{Frames: f.frames.Load(), Faults: f.faults.Load()}
}

func TestRateExporterPublishesRate(t *testing.T) {
	source := &fakeStats{}
	mock := newMockEventBus()
	exporter := NewRateExporter(mock, source)
	exporter.interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)
	source.frames.Store(10)
	source.faults.Store(1)

	select {
	case <-mock.published:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for rate publish")
	}

	cancel()
	exporter.Stop()

	evts := mock.getEvents()
	if len(evts) == 0 {
		t.Fatal("expected at least one event")
	}
	rate, ok := evts[0].(events.FrameRateEvent)
	if !ok {
		t.Fatalf("expected FrameRateEvent, got %T", evts[0])
	}
	if rate.Frames != 10 || rate.Faults != 1 {
		t.Errorf("unexpected counters: frames=%d faults=%d", rate.Frames, rate.Faults)
	}
	if rate.FPS <= 0 {
		t.Errorf("FPS = %v, want > 0", rate.FPS)
	}
}

func TestRateExporterSample(t *testing.T) {
	source := &fakeStats{}
	mock := newMockEventBus()
	exporter := NewRateExporter(mock, source)

	start := time.Now()
	exporter.lastAt = start
	source.frames.Store(60)
	exporter.sample(start.Add(2 * time.Second))

	if fps := exporter.FPS(); fps != 30 {
		t.Errorf("FPS = %v, want 30", fps)
	}

	// A counter reset must not produce a negative rate.
	source.frames.Store(5)
	exporter.sample(start.Add(3 * time.Second))
	if fps := exporter.FPS(); fps != 0 {
		t.Errorf("FPS after reset = %v, want 0", fps)
	}
}

func TestRateExporterStopIdempotent(t *testing.T) {
	mock := newMockEventBus()
	exporter := NewRateExporter(mock, &fakeStats{})
	exporter.interval = 10 * time.Millisecond

	exporter.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	exporter.Stop()
	exporter.Stop()
	exporter.Stop()

	countAfterStop := len(mock.getEvents())
	time.Sleep(30 * time.Millisecond)
	countAfterWait := len(mock.getEvents())

	if countAfterWait != countAfterStop {
		t.Errorf("events published after stop: got %d, want %d", countAfterWait, countAfterStop)
	}
}

func TestRateExporterStopBeforeStart(t *testing.T) {
	mock := newMockEventBus()
	exporter := NewRateExporter(mock, &fakeStats{})
	exporter.interval = 10 * time.Millisecond

	// Stop before start should not panic
	exporter.Stop()

	exporter.Start(t.Context())
	time.Sleep(30 * time.Millisecond)
	exporter.Stop()

	if len(mock.getEvents()) == 0 {
		t.Error("expected events after Start(), got none")
	}
}

func TestGetEventTypes(t *testing.T) {
	types := GetEventTypes()
	if _, ok := types["frame-rate"]; !ok {
		t.Error("expected frame-rate event type")
	}
}
