package synthetic

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
)

// ErrNotRunning is returned by Pump when delivery is stopped.
var ErrNotRunning = errors.New("graph is not running")

const rendererStageName = "renderer"

type stage struct {
	name      string
	mediaType media.MediaType
	fn        media.BufferFunc
	released  bool
}

func (s *stage) Name() string { return s.name }

// Graph is a synthetic media.Graph.
type Graph struct {
	engine *Engine
	id     int
	logger *slog.Logger

	mu       sync.Mutex
	released bool
	stages   []*stage
	source   *stage
	device   media.Device
	format   frame.Format
	chain    []*stage
	rendered bool
	window   *Window
	events   []*event

	// deliverMu serializes frame delivery; Stop takes it to wait out an
	// in-flight callback.
	deliverMu sync.Mutex
	running   bool
	stop      chan struct{}
	done      chan struct{}
	seq       uint8

	frames atomic.Uint64
	faults atomic.Uint64
	runs   atomic.Int64
}

// ID returns the graph number within its engine.
func (g *Graph) ID() int { return g.id }

// Device returns the bound device.
func (g *Graph) Device() media.Device {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.device
}

// Released reports whether Release ran.
func (g *Graph) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

// Running reports whether frames are being delivered.
func (g *Graph) Running() bool {
	g.deliverMu.Lock()
	defer g.deliverMu.Unlock()
	return g.running
}

// Frames returns the number of frames delivered through the chain.
func (g *Graph) Frames() uint64 { return g.frames.Load() }

// Faults returns the number of frames aborted by a stage error.
func (g *Graph) Faults() uint64 { return g.faults.Load() }

// Runs returns how many times Run started delivery.
func (g *Graph) Runs() int { return int(g.runs.Load()) }

// StageNames returns the live stage names in insertion order.
func (g *Graph) StageNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, len(g.stages))
	for i, s := range g.stages {
		names[i] = s.name
	}
	return names
}

// AddSource implements media.Graph.
func (g *Graph) AddSource(dev media.Device) (media.Stage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil, media.ErrGraphReleased
	}
	if err, ok := g.engine.opts.BindErrors[dev.ID]; ok {
		return nil, fmt.Errorf("bind %s: %w", dev.ID, err)
	}
	resolved, err := g.engine.findDevice(dev)
	if err != nil {
		return nil, err
	}
	if g.source != nil {
		return nil, fmt.Errorf("graph %d already has a source", g.id)
	}

	src := g.addStageLocked(media.SourceStageName, media.MediaTypeRawVideo, nil)
	g.source = src
	g.device = resolved
	if caps := g.engine.capabilities(resolved.ID); len(caps) > 0 {
		g.format = caps[0]
	}
	return src, nil
}

// AddStage implements media.Graph.
func (g *Graph) AddStage(name string, mediaType media.MediaType, fn media.BufferFunc) (media.Stage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil, media.ErrGraphReleased
	}
	if mediaType != media.MediaTypeRawVideo {
		return nil, fmt.Errorf("stage %s: unsupported media type %s", name, mediaType)
	}
	for _, s := range g.stages {
		if s.name == name {
			return nil, fmt.Errorf("stage %s already exists", name)
		}
	}
	return g.addStageLocked(name, mediaType, fn), nil
}

func (g *Graph) addStageLocked(name string, mediaType media.MediaType, fn media.BufferFunc) *stage {
	s := &stage{name: name, mediaType: mediaType, fn: fn}
	g.stages = append(g.stages, s)
	g.engine.stagesCreated.Add(1)
	return s
}

// FindStage implements media.Graph.
func (g *Graph) FindStage(name string) (media.Stage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.stages {
		if s.name == name {
			return s, true
		}
	}
	return nil, false
}

// Stages implements media.Graph.
func (g *Graph) Stages() []media.Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]media.Stage, len(g.stages))
	for i, s := range g.stages {
		out[i] = s
	}
	return out
}

// RemoveStage implements media.Graph.
func (g *Graph) RemoveStage(ms media.Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, err := g.ownStageLocked(ms)
	if err != nil {
		return err
	}
	g.releaseStageLocked(s)
	return nil
}

func (g *Graph) releaseStageLocked(s *stage) {
	for i, existing := range g.stages {
		if existing == s {
			g.stages = append(g.stages[:i], g.stages[i+1:]...)
			break
		}
	}
	for i, existing := range g.chain {
		if existing == s {
			g.chain = append(g.chain[:i], g.chain[i+1:]...)
			g.rendered = false
			break
		}
	}
	if s == g.source {
		g.source = nil
		g.rendered = false
	}
	if s.name == rendererStageName {
		g.rendered = false
	}
	if !s.released {
		s.released = true
		g.engine.stagesReleased.Add(1)
	}
}

func (g *Graph) ownStageLocked(ms media.Stage) (*stage, error) {
	s, ok := ms.(*stage)
	if !ok || s.released {
		return nil, media.ErrUnknownStage
	}
	for _, existing := range g.stages {
		if existing == s {
			return s, nil
		}
	}
	return nil, media.ErrUnknownStage
}

// Capabilities implements media.Graph.
func (g *Graph) Capabilities(src media.Stage) ([]frame.Format, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSourceLocked(src); err != nil {
		return nil, err
	}
	caps := g.engine.capabilities(g.device.ID)
	out := make([]frame.Format, len(caps))
	copy(out, caps)
	return out, nil
}

// SetFormat implements media.Graph.
func (g *Graph) SetFormat(src media.Stage, f frame.Format) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSourceLocked(src); err != nil {
		return err
	}
	for _, c := range g.engine.capabilities(g.device.ID) {
		if c == f {
			g.format = f
			return nil
		}
	}
	return fmt.Errorf("format %s not supported by %s", f, g.device.ID)
}

// Format implements media.Graph.
func (g *Graph) Format(src media.Stage) (frame.Format, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSourceLocked(src); err != nil {
		return frame.Format{}, err
	}
	return g.format, nil
}

func (g *Graph) checkSourceLocked(src media.Stage) error {
	if g.source == nil {
		return media.ErrNoSource
	}
	if src != media.Stage(g.source) {
		return media.ErrUnknownStage
	}
	return nil
}

// ConnectedFormat implements media.Graph.
func (g *Graph) ConnectedFormat(ms media.Stage) (media.MediaType, frame.Format, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, err := g.ownStageLocked(ms)
	if err != nil {
		return "", frame.Format{}, err
	}
	if !g.rendered {
		return "", frame.Format{}, fmt.Errorf("stage %s is not connected", s.name)
	}
	return s.mediaType, g.format, nil
}

// Render implements media.Graph.
func (g *Graph) Render(src media.Stage, chain []media.Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkSourceLocked(src); err != nil {
		return err
	}
	stages := make([]*stage, 0, len(chain))
	for _, ms := range chain {
		s, err := g.ownStageLocked(ms)
		if err != nil {
			return err
		}
		stages = append(stages, s)
	}

	hasRenderer := false
	for _, s := range g.stages {
		if s.name == rendererStageName {
			hasRenderer = true
		}
	}
	if !hasRenderer {
		g.addStageLocked(rendererStageName, media.MediaTypeRawVideo, nil)
	}

	g.chain = stages
	g.rendered = true
	g.logger.Debug("Graph rendered", "stages", len(stages), "format", g.format.String())
	return nil
}

// Run implements media.Graph.
func (g *Graph) Run() error {
	g.mu.Lock()
	rendered := g.rendered
	released := g.released
	g.mu.Unlock()

	if released {
		return media.ErrGraphReleased
	}
	if !rendered {
		return errors.New("graph is not rendered")
	}

	g.deliverMu.Lock()
	defer g.deliverMu.Unlock()
	if g.running {
		return nil
	}
	g.running = true
	g.runs.Add(1)

	if interval := g.engine.opts.FrameInterval; interval > 0 {
		g.stop = make(chan struct{})
		g.done = make(chan struct{})
		go g.tick(interval, g.stop, g.done)
	}
	return nil
}

func (g *Graph) tick(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.deliverMu.Lock()
			if g.running {
				g.deliverLocked()
			}
			g.deliverMu.Unlock()
		}
	}
}

// Stop implements media.Graph.
func (g *Graph) Stop() error {
	g.deliverMu.Lock()
	if !g.running {
		g.deliverMu.Unlock()
		return nil
	}
	g.running = false
	stop, done := g.stop, g.done
	g.stop, g.done = nil, nil
	g.deliverMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

// Pump synchronously delivers n frames. It fails when the graph is stopped.
func (g *Graph) Pump(n int) error {
	g.deliverMu.Lock()
	defer g.deliverMu.Unlock()
	if !g.running {
		return ErrNotRunning
	}
	for i := 0; i < n; i++ {
		g.deliverLocked()
	}
	return nil
}

// deliverLocked generates one frame and runs it through the chain.
// Must hold deliverMu.
func (g *Graph) deliverLocked() {
	g.mu.Lock()
	f := g.format
	chain := make([]*stage, len(g.chain))
	copy(chain, g.chain)
	g.mu.Unlock()

	buf := make([]byte, f.Height*f.Stride())
	g.seq++
	for i := range buf {
		buf[i] = g.seq + uint8(i)
	}

	for _, s := range chain {
		if s.fn == nil {
			continue
		}
		if err := s.fn(buf); err != nil {
			g.faults.Add(1)
			g.logger.Debug("Frame aborted", "stage", s.name, "error", err)
			return
		}
	}
	g.frames.Add(1)
	if g.engine.opts.OnRendered != nil {
		g.engine.opts.OnRendered(buf)
	}
}

// Window implements media.Graph.
func (g *Graph) Window() (media.Window, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil, media.ErrGraphReleased
	}
	if g.window == nil || g.window.released.Load() {
		g.window = &Window{}
	}
	return g.window, nil
}

// PreviewWindow returns the current preview window, or nil.
func (g *Graph) PreviewWindow() *Window {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.window
}

// PostEvent queues a graph event for NextEvent.
func (g *Graph) PostEvent(kind media.EventKind, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, &event{kind: kind, msg: msg, engine: g.engine})
}

// NextEvent implements media.Graph.
func (g *Graph) NextEvent() (media.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.events) == 0 {
		return nil, false
	}
	ev := g.events[0]
	g.events = g.events[1:]
	return ev, true
}

// Release implements media.Graph.
func (g *Graph) Release() error {
	if err := g.Stop(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil
	}
	for len(g.stages) > 0 {
		g.releaseStageLocked(g.stages[len(g.stages)-1])
	}
	for _, ev := range g.events {
		ev.Release()
	}
	g.events = nil
	g.released = true
	return nil
}

// Window is a synthetic preview surface.
type Window struct {
	mu       sync.Mutex
	geometry frame.Geometry
	released atomic.Bool
}

// SetGeometry implements media.Window.
func (w *Window) SetGeometry(geom frame.Geometry) error {
	if w.released.Load() {
		return errors.New("window released")
	}
	w.mu.Lock()
	w.geometry = geom
	w.mu.Unlock()
	return nil
}

// Geometry returns the last geometry set.
func (w *Window) Geometry() frame.Geometry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.geometry
}

// Released reports whether Release ran.
func (w *Window) Released() bool {
	return w.released.Load()
}

// Release implements media.Window.
func (w *Window) Release() error {
	w.released.Store(true)
	return nil
}

type event struct {
	kind     media.EventKind
	msg      string
	engine   *Engine
	released atomic.Bool
}

func (e *event) Kind() media.EventKind { return e.kind }
func (e *event) Message() string { return e.msg }

func (e *event) Release() {
	if e.released.CompareAndSwap(false, true) {
		e.engine.eventsReleased.Add(1)
	}
}
