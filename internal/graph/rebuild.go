package graph

import (
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/filters"
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
)

// ErrUnsupportedFormat is returned by ApplyFormat for a format the source
// does not offer.
var ErrUnsupportedFormat = errors.New("format not supported by device")

// Rebuild is handed to a RebuildWithMutation action while delivery is
// stopped and only the source stage is left in the graph.
type Rebuild struct {
	c      *Controller
	origin string
}

// Graph returns the live native graph.
func (r *Rebuild) Graph() media.Graph { return r.c.graph }

// Source returns the source stage.
func (r *Rebuild) Source() media.Stage { return r.c.source }

// Chain returns the filter chain, for changing the registered stage types.
func (r *Rebuild) Chain() *filters.Chain { return r.c.chain }

// Format returns the active format.
func (r *Rebuild) Format() frame.Format { return r.c.format }

// Capabilities lists the packed source formats.
func (r *Rebuild) Capabilities() ([]frame.Format, error) {
	return packedCapabilities(r.c.graph, r.c.source)
}

// SetFormat applies f to the source and makes it the active format.
func (r *Rebuild) SetFormat(f frame.Format) error {
	if !f.Packed() {
		return fmt.Errorf("%w: %s is not packed", ErrUnsupportedFormat, f)
	}
	if err := r.c.graph.SetFormat(r.c.source, f); err != nil {
		return fmt.Errorf("set format %s: %w", f, err)
	}
	r.c.format = f
	r.c.persistLocked(f)
	r.c.eventBus.Publish(events.FormatNegotiatedEvent{
		DeviceID:     r.c.device.ID,
		Width:        f.Width,
		Height:       f.Height,
		BitsPerPixel: f.BitsPerPixel,
		Native:       f.Native,
		Origin:       r.origin,
		Timestamp:    timestamp(),
	})
	return nil
}

// RebuildWithMutation hot-swaps the processing stages. It stops delivery,
// removes every stage except the source, runs action, then rebuilds and
// restarts the graph. The source device is never re-acquired.
//
// Any failure is a hard fault: the graph is torn down to the stopped state,
// the device stays bound and the error is returned.
func (c *Controller) RebuildWithMutation(action func(r *Rebuild) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildLocked(originRequested, action)
}

// ChangeFormat runs the interactive format selection as a rebuild.
func (c *Controller) ChangeFormat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rebuildLocked(originInteractive, func(r *Rebuild) error {
		caps, err := r.Capabilities()
		if err != nil {
			return fmt.Errorf("list capabilities: %w", err)
		}
		chosen, ok, err := c.engine.ChooseFormat(r.Format(), caps)
		if err != nil {
			return fmt.Errorf("choose format: %w", err)
		}
		if !ok || chosen == r.Format() {
			return nil
		}
		return r.SetFormat(chosen)
	})
}

// ApplyFormat switches to the first source capability matching the width,
// height and bpp of f. The format is validated before delivery stops, so an
// unsupported format leaves the running graph untouched.
func (c *Controller) ApplyFormat(f frame.Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph == nil {
		return ErrNoGraph
	}
	caps, err := packedCapabilities(c.graph, c.source)
	if err != nil {
		return err
	}
	target, ok := matchFormat(caps, f.Width, f.Height, f.BitsPerPixel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}

	return c.rebuildLocked(originRequested, func(r *Rebuild) error {
		return r.SetFormat(target)
	})
}

func (c *Controller) rebuildLocked(origin string, action func(r *Rebuild) error) error {
	if c.graph == nil {
		return ErrNoGraph
	}
	started := time.Now()

	if err := c.swapLocked(origin, action, started); err != nil {
		c.logger.Error("Capture graph rebuild failed", "device", c.device.ID, "error", err)
		c.teardownLocked()
		c.setStateLocked(StateStopped)
		return fmt.Errorf("rebuild %s: %w", c.device.ID, err)
	}
	return nil
}

func (c *Controller) swapLocked(origin string, action func(r *Rebuild) error, started time.Time) error {
	if err := c.graph.Stop(); err != nil {
		return fmt.Errorf("stop delivery: %w", err)
	}
	c.setStateLocked(StateStopped)

	src, ok := c.graph.FindStage(media.SourceStageName)
	if !ok {
		return media.ErrNoSource
	}
	for _, s := range c.graph.Stages() {
		if s == src {
			continue
		}
		if err := c.graph.RemoveStage(s); err != nil {
			return fmt.Errorf("remove stage %s: %w", s.Name(), err)
		}
	}
	c.chain.Clear()
	c.source = src

	if action != nil {
		if err := action(&Rebuild{c: c, origin: origin}); err != nil {
			return err
		}
	}
	return c.startStagesLocked(started)
}
