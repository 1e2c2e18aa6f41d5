package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// StatsSource supplies frame counters.
type StatsSource interface {
	Stats() metrics.FrameStats
}

// RateExporter samples frame counters on a ticker and publishes the frame
// rate on the event bus. Consumers on other goroutines read the rate from
// the bus and never touch the delivery path.
type RateExporter struct {
	eventBus EventPublisher
	source   StatsSource
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	last    metrics.FrameStats
	lastAt  time.Time
	lastFPS float64
}

// NewRateExporter creates a rate exporter sampling once per second.
func NewRateExporter(eventBus EventPublisher, source StatsSource) *RateExporter {
	return &RateExporter{
		eventBus: eventBus,
		source:   source,
		interval: 1 * time.Second,
	}
}

// Start begins the export loop.
func (s *RateExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.mu.Lock()
	s.last = s.source.Stats()
	s.lastAt = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
}

// Stop stops the exporter and waits for the goroutine to finish.
func (s *RateExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// FPS returns the most recent frame rate sample.
func (s *RateExporter) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFPS
}

func (s *RateExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.sample(now)
		}
	}
}

func (s *RateExporter) sample(now time.Time) {
	stats := s.source.Stats()

	s.mu.Lock()
	elapsed := now.Sub(s.lastAt).Seconds()
	fps := 0.0
	if elapsed > 0 && stats.Frames >= s.last.Frames {
		fps = float64(stats.Frames-s.last.Frames) / elapsed
	}
	s.last = stats
	s.lastAt = now
	s.lastFPS = fps
	s.mu.Unlock()

	s.eventBus.Publish(events.FrameRateEvent{
		FPS:       fps,
		Frames:    stats.Frames,
		Faults:    stats.Faults,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"frame-rate": events.FrameRateEvent{},
	}
}
