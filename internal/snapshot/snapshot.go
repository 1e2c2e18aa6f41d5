// Package snapshot grabs single frames from the preprocessing chain and
// renders them as still images.
package snapshot

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/interceptors"
)

// PluginName is the name the snapshot plugin is registered under.
const PluginName = "snapshot"

// Frame is an owned copy of one delivered frame.
type Frame struct {
	Data     []byte
	Height   int
	Stride   int
	Captured time.Time
}

// Grabber is a preprocessing interceptor that copies the next frame for
// every pending Grab. With nothing pending it costs one atomic load per
// frame.
type Grabber struct {
	armed   atomic.Bool
	mu      sync.Mutex
	waiters []chan Frame
	now     func() time.Time
}

// NewGrabber creates an idle grabber.
func NewGrabber() *Grabber {
	return &Grabber{now: time.Now}
}

// Category implements interceptors.Interceptor.
func (g *Grabber) Category() interceptors.Category {
	return interceptors.Preprocessing
}

// Preprocess implements interceptors.Preprocessor.
func (g *Grabber) Preprocess(v frame.View) error {
	if !g.armed.Load() {
		return nil
	}

	g.mu.Lock()
	waiters := g.waiters
	g.waiters = nil
	g.armed.Store(false)
	g.mu.Unlock()

	if len(waiters) == 0 {
		return nil
	}
	f := Frame{
		Data:     bytes.Clone(v.Data[:v.Height*v.Stride]),
		Height:   v.Height,
		Stride:   v.Stride,
		Captured: g.now(),
	}
	for _, w := range waiters {
		w <- f
	}
	return nil
}

// Grab waits for the next delivered frame. It returns ctx.Err() when no
// frame arrives in time, for example while the preview is paused.
func (g *Grabber) Grab(ctx context.Context) (Frame, error) {
	ch := make(chan Frame, 1)

	g.mu.Lock()
	g.waiters = append(g.waiters, ch)
	g.armed.Store(true)
	g.mu.Unlock()

	select {
	case f := <-ch:
		return f, nil
	case <-ctx.Done():
		g.mu.Lock()
		g.waiters = slices.DeleteFunc(g.waiters, func(w chan Frame) bool { return w == ch })
		if len(g.waiters) == 0 {
			g.armed.Store(false)
		}
		g.mu.Unlock()

		// A frame may have landed between the deadline and the removal.
		select {
		case f := <-ch:
			return f, nil
		default:
		}
		return Frame{}, ctx.Err()
	}
}

// Plugin exposes a Grabber. It installs no commands.
type Plugin struct {
	grabber *Grabber
}

// NewPlugin wraps g. A nil g creates a fresh grabber.
func NewPlugin(g *Grabber) *Plugin {
	if g == nil {
		g = NewGrabber()
	}
	return &Plugin{grabber: g}
}

// Name returns PluginName.
func (p *Plugin) Name() string { return PluginName }

// Grabber returns the plugin's interceptor.
func (p *Plugin) Grabber() *Grabber { return p.grabber }

// InitUI implements plugins.Plugin.
func (p *Plugin) InitUI(hostui.Host) error { return nil }

// GetInterceptors returns the single Grabber.
func (p *Plugin) GetInterceptors() []interceptors.Interceptor {
	return []interceptors.Interceptor{p.grabber}
}
