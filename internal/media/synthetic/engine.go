// Package synthetic is an in-process capture engine. Its devices produce
// generated frames on a ticker goroutine, which makes the whole capture
// graph usable without hardware: the --capture-simulate mode runs on it and the
// graph tests inspect its handle bookkeeping.
package synthetic

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
)

// DefaultFrameInterval paces the --capture-simulate devices at 30 frames per second.
const DefaultFrameInterval = time.Second / 30

// Chooser implements interactive format selection.
type Chooser func(current frame.Format, caps []frame.Format) (frame.Format, bool, error)

// Options configures an Engine.
type Options struct {
	// Devices defaults to DefaultDevices().
	Devices []media.Device
	// Capabilities per device ID. Devices without an entry use
	// DefaultCapabilities().
	Capabilities map[string][]frame.Format
	// BindErrors makes AddSource fail for the given device IDs.
	BindErrors map[string]error
	// FrameInterval is the delivery period. Zero disables the ticker; frames
	// are then only delivered by Graph.Pump.
	FrameInterval time.Duration
	// Chooser answers ChooseFormat. Nil keeps the current format.
	Chooser Chooser
	// OnRendered sees each frame after the whole chain ran.
	OnRendered func(data []byte)
	Logger     *slog.Logger
}

// Engine is a synthetic media.Engine.
type Engine struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	graphs []*Graph

	stagesCreated  atomic.Int64
	stagesReleased atomic.Int64
	eventsReleased atomic.Int64
	chooserCalls   atomic.Int64
}

// DefaultDevices returns two virtual cameras.
func DefaultDevices() []media.Device {
	return []media.Device{
		{ID: "synthetic-0", Name: "Synthetic Camera 0", Path: "synthetic://0"},
		{ID: "synthetic-1", Name: "Synthetic Camera 1", Path: "synthetic://1"},
	}
}

// DefaultCapabilities returns a small RGB/YUYV capability list.
func DefaultCapabilities() []frame.Format {
	return []frame.Format{
		{Width: 320, Height: 240, BitsPerPixel: 24, Native: "RGB3"},
		{Width: 640, Height: 480, BitsPerPixel: 16, Native: "YUYV"},
		{Width: 640, Height: 480, BitsPerPixel: 24, Native: "RGB3"},
		{Width: 1280, Height: 720, BitsPerPixel: 24, Native: "RGB3"},
		{Width: 1280, Height: 720, BitsPerPixel: 32, Native: "BGR4"},
	}
}

// New creates a synthetic engine.
func New(opts Options) *Engine {
	if opts.Devices == nil {
		opts.Devices = DefaultDevices()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, logger: logger}
}

// Devices implements media.Engine.
func (e *Engine) Devices() ([]media.Device, error) {
	out := make([]media.Device, len(e.opts.Devices))
	copy(out, e.opts.Devices)
	return out, nil
}

// NewGraph implements media.Engine.
func (e *Engine) NewGraph() (media.Graph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g := &Graph{
		engine: e,
		id:     len(e.graphs) + 1,
		logger: e.logger.With("graph", len(e.graphs)+1),
	}
	e.graphs = append(e.graphs, g)
	return g, nil
}

// ChooseFormat implements media.Engine.
func (e *Engine) ChooseFormat(current frame.Format, caps []frame.Format) (frame.Format, bool, error) {
	e.chooserCalls.Add(1)
	if e.opts.Chooser == nil {
		return current, false, nil
	}
	return e.opts.Chooser(current, caps)
}

// Graphs returns every graph created so far.
func (e *Engine) Graphs() []*Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Graph, len(e.graphs))
	copy(out, e.graphs)
	return out
}

// LastGraph returns the most recently created graph, or nil.
func (e *Engine) LastGraph() *Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.graphs) == 0 {
		return nil
	}
	return e.graphs[len(e.graphs)-1]
}

// StagesCreated returns how many stage handles were ever created.
func (e *Engine) StagesCreated() int {
	return int(e.stagesCreated.Load())
}

// LiveStages returns how many stage handles are still unreleased.
func (e *Engine) LiveStages() int {
	return int(e.stagesCreated.Load() - e.stagesReleased.Load())
}

// EventsReleased returns how many drained events were released.
func (e *Engine) EventsReleased() int {
	return int(e.eventsReleased.Load())
}

// ChooserCalls returns how often interactive selection ran.
func (e *Engine) ChooserCalls() int {
	return int(e.chooserCalls.Load())
}

func (e *Engine) capabilities(deviceID string) []frame.Format {
	if caps, ok := e.opts.Capabilities[deviceID]; ok {
		return caps
	}
	return DefaultCapabilities()
}

func (e *Engine) findDevice(dev media.Device) (media.Device, error) {
	for _, d := range e.opts.Devices {
		if d.ID == dev.ID {
			return d, nil
		}
	}
	return media.Device{}, fmt.Errorf("device %s not found", dev.ID)
}
