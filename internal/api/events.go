package api

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/metrics/exporters"
)

// eventTypes maps SSE event names to payloads.
func eventTypes() map[string]any {
	types := map[string]any{
		"pipeline-state":    events.PipelineStateChangedEvent{},
		"device-selected":   events.DeviceSelectedEvent{},
		"format-negotiated": events.FormatNegotiatedEvent{},
		"graph-rebuilt":     events.GraphRebuiltEvent{},
		"setup-failed":      events.SetupFailedEvent{},
		"graph-notice":      events.GraphNoticeEvent{},
		"device-discovery":  events.DeviceDiscoveryEvent{},
		"command-invoked":   events.CommandInvokedEvent{},
	}
	maps.Copy(types, exporters.GetEventTypes())
	return types
}

func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Capture state changes, device and format events, plugin commands and the frame rate",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		forwarder := events.SubscribeStream(s.eventBus, eventCh)
		defer func() {
			forwarder.Close()
			if n := forwarder.Dropped(); n > 0 {
				s.logger.Debug("SSE client fell behind", "dropped_events", n)
			}
		}()

		// The first message carries the current state so clients need no
		// separate fetch.
		snap := s.options.Capture.Snapshot()
		initial := events.PipelineStateChangedEvent{
			BuildID:   snap.BuildID,
			From:      string(snap.State),
			To:        string(snap.State),
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if snap.Bound {
			initial.DeviceID = snap.Device.ID
		}
		if err := send.Data(initial); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
