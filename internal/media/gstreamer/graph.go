//go:build linux

package gstreamer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
)

const rendererStageName = "renderer"

// stage is a run of linked elements added and removed as one unit.
type stage struct {
	name      string
	mediaType media.MediaType
	elements  []*gst.Element
	fn        media.BufferFunc
	released  bool
}

func (s *stage) Name() string { return s.name }

func (s *stage) first() *gst.Element { return s.elements[0] }
func (s *stage) last() *gst.Element  { return s.elements[len(s.elements)-1] }

// Graph is one GStreamer pipeline.
type Graph struct {
	engine   *Engine
	id       int
	pipeline *gst.Pipeline
	bus      *gst.Bus
	logger   *slog.Logger

	mu         sync.Mutex
	released   bool
	stages     []*stage
	source     *stage
	sourceCaps *gst.Element
	device     media.Device
	caps       []frame.Format
	format     frame.Format
	rendered   bool
	previewCap *gst.Element
	window     *Window

	// deliverMu is held for reading by every probe callback; Stop takes it
	// for writing to wait out in-flight frames.
	deliverMu sync.RWMutex
	running   atomic.Bool
	faults    atomic.Uint64
	unmapped  atomic.Bool
}

// AddSource implements media.Graph.
func (g *Graph) AddSource(dev media.Device) (media.Stage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil, media.ErrGraphReleased
	}
	if g.source != nil {
		return nil, fmt.Errorf("graph %d already has a source", g.id)
	}

	modes, err := g.engine.opts.Modes(dev.Path)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", dev.ID, err)
	}
	caps := formatsFromModes(modes)
	if len(caps) == 0 {
		return nil, fmt.Errorf("bind %s: no raw capture formats", dev.ID)
	}

	src, err := gst.NewElementWithName("v4l2src", "v4l2src")
	if err != nil {
		return nil, fmt.Errorf("create v4l2src: %w", err)
	}
	if err := src.SetProperty("device", dev.Path); err != nil {
		return nil, fmt.Errorf("set device %s: %w", dev.Path, err)
	}
	filter, err := gst.NewElementWithName("capsfilter", "source-caps")
	if err != nil {
		return nil, fmt.Errorf("create capsfilter: %w", err)
	}

	s := &stage{name: media.SourceStageName, mediaType: media.MediaTypeRawVideo, elements: []*gst.Element{src, filter}}
	if err := g.addLocked(s); err != nil {
		return nil, err
	}

	g.source, g.sourceCaps = s, filter
	g.device, g.caps = dev, caps
	if err := g.applyFormatLocked(caps[0]); err != nil {
		g.releaseStageLocked(s)
		return nil, err
	}
	g.logger.Debug("Source bound", "device", dev.ID, "path", dev.Path, "formats", len(caps))
	return s, nil
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

	elem, err := gst.NewElementWithName("identity", name)
	if err != nil {
		return nil, fmt.Errorf("create stage %s: %w", name, err)
	}
	s := &stage{name: name, mediaType: mediaType, elements: []*gst.Element{elem}, fn: fn}
	if err := g.addLocked(s); err != nil {
		return nil, err
	}

	pad := elem.GetStaticPad("src")
	if pad == nil {
		g.releaseStageLocked(s)
		return nil, fmt.Errorf("stage %s has no src pad", name)
	}
	pad.AddProbe(gst.PadProbeTypeBuffer, func(_ *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		return g.deliver(s, info)
	})
	return s, nil
}

// deliver runs a stage callback on one buffer. A failing callback drops the
// frame.
func (g *Graph) deliver(s *stage, info *gst.PadProbeInfo) gst.PadProbeReturn {
	g.deliverMu.RLock()
	defer g.deliverMu.RUnlock()

	if !g.running.Load() || s.fn == nil {
		return gst.PadProbeOK
	}
	buffer := info.GetBuffer()
	if buffer == nil {
		return gst.PadProbeOK
	}
	mapInfo := buffer.Map(gst.MapReadWrite)
	if mapInfo == nil {
		if g.unmapped.CompareAndSwap(false, true) {
			g.logger.Warn("Frame buffer not writable, stage skipped", "stage", s.name)
		}
		return gst.PadProbeOK
	}
	defer buffer.Unmap()

	if err := s.fn(mapInfo.AsUint8Slice()); err != nil {
		g.faults.Add(1)
		g.logger.Debug("Frame aborted", "stage", s.name, "error", err)
		return gst.PadProbeDrop
	}
	return gst.PadProbeOK
}

func (g *Graph) addLocked(s *stage) error {
	for _, elem := range s.elements {
		if err := g.pipeline.Add(elem); err != nil {
			return fmt.Errorf("add %s: %w", s.name, err)
		}
	}
	if len(s.elements) > 1 {
		if err := gst.ElementLinkMany(s.elements...); err != nil {
			for _, elem := range s.elements {
				_ = g.pipeline.Remove(elem)
			}
			return fmt.Errorf("link %s: %w", s.name, err)
		}
	}
	g.stages = append(g.stages, s)
	return nil
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

// RemoveStage implements media.Graph. Removing an element from the pipeline
// unlinks its pads.
func (g *Graph) RemoveStage(ms media.Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, err := g.ownStageLocked(ms)
	if err != nil {
		return err
	}
	return g.releaseStageLocked(s)
}

func (g *Graph) releaseStageLocked(s *stage) error {
	for i, existing := range g.stages {
		if existing == s {
			g.stages = append(g.stages[:i], g.stages[i+1:]...)
			break
		}
	}
	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for _, elem := range s.elements {
		if err := elem.SetState(gst.StateNull); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", elem.GetName(), err))
		}
		if err := g.pipeline.Remove(elem); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", elem.GetName(), err))
		}
	}

	g.rendered = false
	switch {
	case s == g.source:
		g.source, g.sourceCaps = nil, nil
	case s.name == rendererStageName:
		g.previewCap = nil
	}
	return errors.Join(errs...)
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

func (g *Graph) checkSourceLocked(src media.Stage) error {
	if g.source == nil {
		return media.ErrNoSource
	}
	if src != media.Stage(g.source) {
		return media.ErrUnknownStage
	}
	return nil
}

// Capabilities implements media.Graph.
func (g *Graph) Capabilities(src media.Stage) ([]frame.Format, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSourceLocked(src); err != nil {
		return nil, err
	}
	out := make([]frame.Format, len(g.caps))
	copy(out, g.caps)
	return out, nil
}

// SetFormat implements media.Graph.
func (g *Graph) SetFormat(src media.Stage, f frame.Format) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSourceLocked(src); err != nil {
		return err
	}
	for _, c := range g.caps {
		if c == f {
			return g.applyFormatLocked(f)
		}
	}
	return fmt.Errorf("format %s not supported by %s", f, g.device.ID)
}

func (g *Graph) applyFormatLocked(f frame.Format) error {
	capsStr, err := rawCaps(f)
	if err != nil {
		return err
	}
	if err := g.sourceCaps.SetProperty("caps", gst.NewCapsFromString(capsStr)); err != nil {
		return fmt.Errorf("set source caps: %w", err)
	}
	g.format = f
	return nil
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

// ConnectedFormat implements media.Graph. Identity stages pass the source
// caps through unchanged, so every stage sees the pinned source format.
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
	if g.rendered {
		return errors.New("graph is already rendered")
	}
	stages := make([]*stage, 0, len(chain)+2)
	stages = append(stages, g.source)
	for _, ms := range chain {
		s, err := g.ownStageLocked(ms)
		if err != nil {
			return err
		}
		stages = append(stages, s)
	}

	renderer, err := g.rendererLocked()
	if err != nil {
		return err
	}
	stages = append(stages, renderer)

	for i := 0; i+1 < len(stages); i++ {
		if err := stages[i].last().Link(stages[i+1].first()); err != nil {
			return fmt.Errorf("link %s to %s: %w", stages[i].name, stages[i+1].name, err)
		}
	}
	g.rendered = true
	g.logger.Debug("Graph rendered", "stages", len(chain), "format", g.format.String())
	return nil
}

// rendererLocked returns the preview renderer, creating it on first use.
func (g *Graph) rendererLocked() (*stage, error) {
	for _, s := range g.stages {
		if s.name == rendererStageName {
			return s, nil
		}
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("create videoconvert: %w", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("create videoscale: %w", err)
	}
	filter, err := gst.NewElementWithName("capsfilter", "preview-caps")
	if err != nil {
		return nil, fmt.Errorf("create capsfilter: %w", err)
	}
	sink, err := gst.NewElementWithName(g.engine.opts.PreviewSink, "preview")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", g.engine.opts.PreviewSink, err)
	}

	s := &stage{name: rendererStageName, mediaType: media.MediaTypeRawVideo, elements: []*gst.Element{convert, scale, filter, sink}}
	if err := g.addLocked(s); err != nil {
		return nil, err
	}
	g.previewCap = filter
	if g.window != nil {
		if err := g.applyGeometryLocked(g.window.Geometry()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (g *Graph) applyGeometryLocked(geom frame.Geometry) error {
	if g.previewCap == nil {
		return nil
	}
	if err := g.previewCap.SetProperty("caps", gst.NewCapsFromString(previewCaps(geom))); err != nil {
		return fmt.Errorf("set preview caps: %w", err)
	}
	return nil
}

// Run implements media.Graph.
func (g *Graph) Run() error {
	g.mu.Lock()
	rendered, released := g.rendered, g.released
	g.mu.Unlock()

	if released {
		return media.ErrGraphReleased
	}
	if !rendered {
		return errors.New("graph is not rendered")
	}
	if g.running.Load() {
		return nil
	}

	g.running.Store(true)
	if err := g.pipeline.SetState(gst.StatePlaying); err != nil {
		g.running.Store(false)
		if nullErr := g.pipeline.SetState(gst.StateNull); nullErr != nil {
			g.logger.Warn("Resetting pipeline after failed start", "error", nullErr)
		}
		return fmt.Errorf("start pipeline: %w", err)
	}
	return nil
}

// Stop implements media.Graph. The pipeline goes to NULL, which joins the
// streaming threads; the write lock then waits out any probe still running.
func (g *Graph) Stop() error {
	if !g.running.Swap(false) {
		return nil
	}
	err := g.pipeline.SetState(gst.StateNull)
	g.deliverMu.Lock()
	g.deliverMu.Unlock() //nolint:staticcheck // barrier for in-flight probes
	if err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}
	return nil
}

// Window implements media.Graph.
func (g *Graph) Window() (media.Window, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil, media.ErrGraphReleased
	}
	if g.window == nil || g.window.released.Load() {
		g.window = &Window{graph: g}
	}
	return g.window, nil
}

// NextEvent implements media.Graph.
func (g *Graph) NextEvent() (media.Event, bool) {
	g.mu.Lock()
	released := g.released
	g.mu.Unlock()
	if released {
		return nil, false
	}

	msg := g.bus.Pop()
	if msg == nil {
		return nil, false
	}
	return newEvent(msg), true
}

// Release implements media.Graph.
func (g *Graph) Release() error {
	stopErr := g.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return stopErr
	}

	errs := []error{stopErr}
	for len(g.stages) > 0 {
		errs = append(errs, g.releaseStageLocked(g.stages[len(g.stages)-1]))
	}
	for {
		msg := g.bus.Pop()
		if msg == nil {
			break
		}
		newEvent(msg).Release()
	}
	if g.window != nil {
		g.window.released.Store(true)
	}
	g.released = true
	if faults := g.faults.Load(); faults > 0 {
		g.logger.Debug("Graph released", "aborted_frames", faults)
	}
	return errors.Join(errs...)
}

// Window scales the preview to its geometry. The preview sink places the
// window itself, so the position is kept but not applied.
type Window struct {
	graph    *Graph
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

	w.graph.mu.Lock()
	defer w.graph.mu.Unlock()
	return w.graph.applyGeometryLocked(geom)
}

// Geometry returns the last geometry set.
func (w *Window) Geometry() frame.Geometry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.geometry
}

// Release implements media.Window.
func (w *Window) Release() error {
	w.released.Store(true)
	return nil
}
