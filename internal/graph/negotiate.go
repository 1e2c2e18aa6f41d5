package graph

import (
	"fmt"
	"slices"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
)

// Format origins reported on FormatNegotiatedEvent.
const (
	originReapplied   = "reapplied"
	originPersisted   = "persisted"
	originInteractive = "interactive"
	originRequested   = "requested"
)

// negotiateLocked picks and applies the source format. An active format is
// reapplied verbatim. Otherwise the persisted width, height and bpp are
// matched exactly against the capability list, first match in enumeration
// order. Without a match the engine asks the user.
func (c *Controller) negotiateLocked(g media.Graph, src media.Stage) (frame.Format, string, error) {
	if !c.format.IsZero() {
		if err := g.SetFormat(src, c.format); err != nil {
			return frame.Format{}, "", fmt.Errorf("reapply format %s: %w", c.format, err)
		}
		return c.format, originReapplied, nil
	}

	caps, err := packedCapabilities(g, src)
	if err != nil {
		return frame.Format{}, "", err
	}

	if f, ok := c.persistedMatch(caps); ok {
		if err := g.SetFormat(src, f); err != nil {
			return frame.Format{}, "", fmt.Errorf("apply persisted format %s: %w", f, err)
		}
		return f, originPersisted, nil
	}

	f, err := c.chooseLocked(g, src, caps)
	if err != nil {
		return frame.Format{}, "", err
	}
	return f, originInteractive, nil
}

// chooseLocked runs interactive selection and applies the result. A
// cancelled dialog keeps the current source format, or the first packed
// capability when the current format is planar.
func (c *Controller) chooseLocked(g media.Graph, src media.Stage, caps []frame.Format) (frame.Format, error) {
	current, err := g.Format(src)
	if err != nil {
		return frame.Format{}, fmt.Errorf("read source format: %w", err)
	}

	chosen, ok, err := c.engine.ChooseFormat(current, caps)
	if err != nil {
		return frame.Format{}, fmt.Errorf("choose format: %w", err)
	}
	if !ok {
		if current.Packed() {
			return current, nil
		}
		if len(caps) == 0 {
			return frame.Format{}, fmt.Errorf("%w: device offers no packed format", ErrUnsupportedFormat)
		}
		chosen = caps[0]
		c.logger.Info("Current format is not packed, using first packed capability",
			"current", current.String(), "native", current.Native, "format", chosen.String())
	}
	if !chosen.Packed() {
		return frame.Format{}, fmt.Errorf("%w: %s is not packed", ErrUnsupportedFormat, chosen)
	}
	if err := g.SetFormat(src, chosen); err != nil {
		return frame.Format{}, fmt.Errorf("apply chosen format %s: %w", chosen, err)
	}
	return chosen, nil
}

func (c *Controller) persistedMatch(caps []frame.Format) (frame.Format, bool) {
	if c.settings == nil {
		return frame.Format{}, false
	}
	width, height, bpp, ok, err := c.settings.Load()
	if err != nil {
		c.logger.Warn("Reading persisted format failed", "error", err)
		return frame.Format{}, false
	}
	if !ok {
		return frame.Format{}, false
	}
	if f, found := matchFormat(caps, width, height, bpp); found {
		return f, true
	}
	c.logger.Info("Persisted format not offered by device",
		"device", c.device.ID, "width", width, "height", height, "bpp", bpp)
	return frame.Format{}, false
}

// packedCapabilities lists the source formats the processing stages can
// handle, in enumeration order.
func packedCapabilities(g media.Graph, src media.Stage) ([]frame.Format, error) {
	caps, err := g.Capabilities(src)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	return slices.DeleteFunc(caps, func(f frame.Format) bool { return !f.Packed() }), nil
}

// matchFormat returns the first capability matching all three fields.
func matchFormat(caps []frame.Format, width, height, bpp int) (frame.Format, bool) {
	for _, f := range caps {
		if f.Matches(width, height, bpp) {
			return f, true
		}
	}
	return frame.Format{}, false
}

// persistLocked saves a negotiated format. Failures are logged only.
func (c *Controller) persistLocked(f frame.Format) {
	if c.settings == nil {
		return
	}
	if err := c.settings.Save(f.Width, f.Height, f.BitsPerPixel); err != nil {
		c.logger.Warn("Saving format failed", "format", f.String(), "error", err)
	}
}
