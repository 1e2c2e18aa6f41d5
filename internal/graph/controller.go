// Package graph drives the capture graph through its lifecycle.
//
// The Controller is the only owner of native graph resources. It binds a
// device, negotiates the source format, asks the filter chain for its
// processing stages, connects source -> stages -> renderer and starts
// delivery. Pipeline changes that keep the device (format changes, stage set
// changes) go through RebuildWithMutation, which never re-acquires the
// source.
//
// All operations serialize on one mutex and are meant to be called from the
// control goroutine. Frame delivery runs on engine goroutines and never takes
// that mutex.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/filters"
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
	"github.com/smazurov/videofx/internal/metrics"
)

// Controller errors.
var (
	ErrSetupFailed = errors.New("capture setup failed")
	ErrNoDevice    = errors.New("no capture device bound")
	ErrNoGraph     = errors.New("no capture graph built")
	ErrGraphFault  = errors.New("capture graph fault")
)

// Settings persists the last negotiated format.
type Settings interface {
	Load() (width, height, bpp int, ok bool, err error)
	Save(width, height, bpp int) error
}

// Notifier surfaces unrecoverable setup failures to the user.
type Notifier interface {
	NotifyUnrecoverable(err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err error)

// NotifyUnrecoverable calls f(err).
func (f NotifierFunc) NotifyUnrecoverable(err error) { f(err) }

// Options configures a Controller.
type Options struct {
	Engine media.Engine
	Chain  *filters.Chain
	// Settings is optional. Without it negotiation always goes interactive.
	Settings Settings
	// Notifier is optional.
	Notifier Notifier
	// EventBus is optional.
	EventBus *events.Bus
	Logger   *slog.Logger
}

// Controller is the capture graph state machine.
type Controller struct {
	engine   media.Engine
	chain    *filters.Chain
	settings Settings
	notifier Notifier
	eventBus *events.Bus
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	device   media.Device
	bound    bool
	format   frame.Format
	geometry frame.Geometry
	buildID  string

	graph  media.Graph
	source media.Stage
	window media.Window
	scope  *scope
}

// NewController creates a controller in the uninitialized state.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		engine:   opts.Engine,
		chain:    opts.Chain,
		settings: opts.Settings,
		notifier: opts.Notifier,
		eventBus: opts.EventBus,
		logger:   logger,
		state:    StateUninitialized,
	}
}

// State returns the current pipeline state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Device returns the bound device.
func (c *Controller) Device() (media.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device, c.bound
}

// Format returns the active format, or the zero Format.
func (c *Controller) Format() frame.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:    c.state,
		Device:   c.device,
		Bound:    c.bound,
		Format:   c.format,
		BuildID:  c.buildID,
		Geometry: c.geometry,
	}
	if c.graph != nil {
		for _, s := range c.graph.Stages() {
			snap.Stages = append(snap.Stages, s.Name())
		}
	}
	return snap
}

// Capabilities lists the packed formats of the bound source.
func (c *Controller) Capabilities() ([]frame.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graph == nil {
		return nil, ErrNoGraph
	}
	return packedCapabilities(c.graph, c.source)
}

// SelectDevice tears down the current graph, binds dev, negotiates a format
// and builds a running graph. On failure nothing stays acquired, the state is
// stopped with no device bound, the notifier is called once and the returned
// error wraps ErrSetupFailed.
func (c *Controller) SelectDevice(dev media.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sameDevice := c.bound && c.device.ID == dev.ID
	c.teardownLocked()
	if !sameDevice {
		c.format = frame.Format{}
	}

	c.device = dev
	c.bound = true
	logger := c.logger.With("device", dev.ID)
	logger.Info("Selecting capture device", "name", dev.Name, "path", dev.Path)

	if err := c.buildLocked(); err != nil {
		c.device = media.Device{}
		c.bound = false
		c.format = frame.Format{}
		c.setStateLocked(StateStopped)

		setupErr := fmt.Errorf("%w: %s: %w", ErrSetupFailed, dev.ID, err)
		logger.Error("Capture setup failed", "error", err)
		metrics.IncSetupFailure()
		c.eventBus.Publish(events.SetupFailedEvent{
			DeviceID:  dev.ID,
			Error:     err.Error(),
			Timestamp: timestamp(),
		})
		if c.notifier != nil {
			c.notifier.NotifyUnrecoverable(setupErr)
		}
		return setupErr
	}

	c.eventBus.Publish(events.DeviceSelectedEvent{
		DeviceID:   dev.ID,
		DeviceName: dev.Name,
		DevicePath: dev.Path,
		Timestamp:  timestamp(),
	})
	return nil
}

// ResetDevice releases every native resource and unbinds the device.
func (c *Controller) ResetDevice() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.teardownLocked()
	if c.bound {
		c.logger.Info("Capture device reset", "device", c.device.ID)
	}
	c.device = media.Device{}
	c.bound = false
	c.format = frame.Format{}
	c.setStateLocked(StateStopped)
	return err
}

// Teardown releases every native resource. It is legal from any state and
// idempotent.
func (c *Controller) Teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.teardownLocked()
	c.device = media.Device{}
	c.bound = false
	c.format = frame.Format{}
	c.setStateLocked(StateUninitialized)
	return err
}

// SetPreviewActive pauses or resumes frame delivery without rebuilding the
// graph. Resuming requires a bound device; when the graph was torn down by a
// fault it is rebuilt for the bound device.
func (c *Controller) SetPreviewActive(active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !active {
		if c.state != StateRunning {
			return nil
		}
		if err := c.graph.Stop(); err != nil {
			return fmt.Errorf("stop delivery: %w", err)
		}
		c.setStateLocked(StateStopped)
		return nil
	}

	if !c.bound {
		return ErrNoDevice
	}
	if c.state == StateRunning {
		return nil
	}
	if c.graph == nil {
		if err := c.buildLocked(); err != nil {
			c.setStateLocked(StateStopped)
			return fmt.Errorf("rebuild for %s: %w", c.device.ID, err)
		}
		return nil
	}
	if err := c.graph.Run(); err != nil {
		return fmt.Errorf("resume delivery: %w", err)
	}
	c.setStateLocked(StateRunning)
	return nil
}

// Resize sets the preview geometry. It never changes the pipeline state; the
// geometry is kept and applied to later preview windows as well.
func (c *Controller) Resize(geom frame.Geometry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.geometry = geom
	if c.window == nil {
		return nil
	}
	if err := c.window.SetGeometry(geom); err != nil {
		return fmt.Errorf("resize preview: %w", err)
	}
	return nil
}

// buildLocked acquires a graph for the bound device and starts it. Handles
// acquired here are owned by a scope that is released on any failure, and
// handed to the controller on success.
func (c *Controller) buildLocked() (err error) {
	sc := &scope{}
	defer sc.releaseOnError(&err)

	g, err := c.engine.NewGraph()
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}
	sc.add(g.Release)

	src, err := g.AddSource(c.device)
	if err != nil {
		return fmt.Errorf("add source: %w", err)
	}
	sc.add(func() error {
		if relErr := g.RemoveStage(src); relErr != nil && !errors.Is(relErr, media.ErrUnknownStage) {
			return relErr
		}
		return nil
	})

	f, origin, err := c.negotiateLocked(g, src)
	if err != nil {
		return err
	}

	win, err := g.Window()
	if err != nil {
		return fmt.Errorf("preview window: %w", err)
	}
	sc.add(win.Release)
	if !c.geometry.IsZero() {
		if err = win.SetGeometry(c.geometry); err != nil {
			return fmt.Errorf("preview geometry: %w", err)
		}
	}

	c.graph, c.source, c.window, c.scope = g, src, win, sc
	if err = c.startStagesLocked(time.Now()); err != nil {
		c.graph, c.source, c.window, c.scope = nil, nil, nil, nil
		c.chain.Clear()
		return err
	}

	c.format = f
	c.persistLocked(f)
	c.eventBus.Publish(events.FormatNegotiatedEvent{
		DeviceID:     c.device.ID,
		Width:        f.Width,
		Height:       f.Height,
		BitsPerPixel: f.BitsPerPixel,
		Native:       f.Native,
		Origin:       origin,
		Timestamp:    timestamp(),
	})
	return nil
}

// startStagesLocked builds the processing stages into the current graph,
// connects them, configures their geometry and starts delivery.
func (c *Controller) startStagesLocked(started time.Time) error {
	handles, err := c.chain.Build(c.graph)
	if err != nil {
		return fmt.Errorf("build stages: %w", err)
	}
	if err := c.graph.Render(c.source, handles); err != nil {
		return fmt.Errorf("render graph: %w", err)
	}
	if err := c.chain.Configure(); err != nil {
		return fmt.Errorf("configure stages: %w", err)
	}
	if err := c.graph.Run(); err != nil {
		return fmt.Errorf("run graph: %w", err)
	}

	c.buildID = uuid.NewString()
	c.setStateLocked(StateRunning)
	metrics.ObserveRebuild(time.Since(started))

	names := make([]string, len(handles))
	for i, h := range handles {
		names[i] = h.Name()
	}
	c.logger.Info("Capture graph running", "device", c.device.ID, "build_id", c.buildID, "stages", names)
	c.eventBus.Publish(events.GraphRebuiltEvent{
		BuildID:   c.buildID,
		DeviceID:  c.device.ID,
		Stages:    names,
		Timestamp: timestamp(),
	})
	return nil
}

// teardownLocked releases the current graph, if any. Release errors are
// logged and returned; the controller forgets the handles either way.
func (c *Controller) teardownLocked() error {
	if c.scope == nil {
		return nil
	}
	err := c.scope.release()
	if err != nil {
		c.logger.Warn("Releasing capture graph failed", "device", c.device.ID, "error", err)
	}
	c.chain.Clear()
	c.graph, c.source, c.window, c.scope = nil, nil, nil, nil
	c.buildID = ""
	return err
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	metrics.SetPipelineState(string(s))
	c.logger.Debug("Pipeline state changed", "from", from, "to", s)
	c.eventBus.Publish(events.PipelineStateChangedEvent{
		BuildID:   c.buildID,
		DeviceID:  c.device.ID,
		From:      string(from),
		To:        string(s),
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
