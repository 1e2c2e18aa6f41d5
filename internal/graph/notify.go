package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/media"
	"github.com/smazurov/videofx/internal/metrics"
)

// HandleGraphEvents drains every pending native event, releasing each one
// after it was published. An error or device-lost event tears the graph down
// to the stopped state, keeping the device bound, and is returned wrapped in
// ErrGraphFault.
func (c *Controller) HandleGraphEvents() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph == nil {
		return nil
	}

	var faults []error
	for {
		ev, ok := c.graph.NextEvent()
		if !ok {
			break
		}
		kind, msg := ev.Kind(), ev.Message()
		ev.Release()

		metrics.IncGraphEvent(string(kind))
		c.eventBus.Publish(events.GraphNoticeEvent{
			BuildID:   c.buildID,
			Kind:      string(kind),
			Message:   msg,
			Timestamp: timestamp(),
		})

		switch kind {
		case media.EventError, media.EventDeviceLost:
			c.logger.Error("Capture graph fault", "device", c.device.ID, "kind", kind, "message", msg)
			faults = append(faults, fmt.Errorf("%w: %s: %s", ErrGraphFault, kind, msg))
		case media.EventComplete:
			c.logger.Info("Capture stream ended", "device", c.device.ID)
		default:
			c.logger.Debug("Graph event", "kind", kind, "message", msg)
		}
	}

	if len(faults) == 0 {
		return nil
	}
	c.teardownLocked()
	c.setStateLocked(StateStopped)
	return errors.Join(faults...)
}

// Watch polls HandleGraphEvents every interval until ctx is cancelled.
func (c *Controller) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.HandleGraphEvents(); err != nil {
				c.logger.Warn("Capture graph stopped after fault", "error", err)
			}
		}
	}
}
