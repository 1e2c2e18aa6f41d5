//go:build linux

// Package gstreamer is the native capture engine: V4L2 devices captured by
// GStreamer pipelines of the form
//
//	v4l2src ! capsfilter ! identity... ! videoconvert ! videoscale ! capsfilter ! sink
//
// Each processing stage is an identity element whose source pad carries a
// buffer probe that hands the mapped frame to the stage callback.
package gstreamer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
	"github.com/smazurov/videofx/pkg/linuxav/v4l2"
)

const mediaTypeRaw = string(media.MediaTypeRawVideo)

// DefaultPreviewSink is the renderer element used when none is configured.
const DefaultPreviewSink = "autovideosink"

// Chooser implements interactive format selection.
type Chooser func(current frame.Format, caps []frame.Format) (frame.Format, bool, error)

// Options configures an Engine.
type Options struct {
	// PreviewSink is the element factory of the preview renderer.
	PreviewSink string
	// Chooser answers ChooseFormat. Nil keeps the current format.
	Chooser Chooser
	Logger  *slog.Logger

	// FindDevices and Modes default to the v4l2 package.
	FindDevices func() ([]v4l2.DeviceInfo, error)
	Modes       func(devicePath string) ([]v4l2.Mode, error)
}

// Engine is a GStreamer media.Engine.
type Engine struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	graphs int
}

var initOnce sync.Once

// New initializes GStreamer and checks that the elements the engine needs
// are installed.
func New(opts Options) (*Engine, error) {
	if opts.PreviewSink == "" {
		opts.PreviewSink = DefaultPreviewSink
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FindDevices == nil {
		opts.FindDevices = v4l2.FindDevices
	}
	if opts.Modes == nil {
		opts.Modes = v4l2.Modes
	}

	if err := probeElements("v4l2src", "capsfilter", "identity", "videoconvert", "videoscale", opts.PreviewSink); err != nil {
		return nil, err
	}

	return &Engine{opts: opts, logger: opts.Logger}, nil
}

// probeElements checks that every factory can create an element.
func probeElements(factories ...string) error {
	initOnce.Do(func() { gst.Init(nil) })
	for _, factory := range factories {
		elem, err := gst.NewElement(factory)
		if err != nil {
			return fmt.Errorf("GStreamer element %s not available: %w", factory, err)
		}
		if err := elem.SetState(gst.StateNull); err != nil {
			return fmt.Errorf("GStreamer element %s: %w", factory, err)
		}
	}
	return nil
}

// Devices implements media.Engine.
func (e *Engine) Devices() ([]media.Device, error) {
	infos, err := e.opts.FindDevices()
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	out := make([]media.Device, len(infos))
	for i, info := range infos {
		out[i] = media.Device{ID: info.DeviceID, Name: info.DeviceName, Path: info.DevicePath}
	}
	return out, nil
}

// NewGraph implements media.Engine.
func (e *Engine) NewGraph() (media.Graph, error) {
	e.mu.Lock()
	e.graphs++
	id := e.graphs
	e.mu.Unlock()

	pipeline, err := gst.NewPipeline(fmt.Sprintf("videofx-%d", id))
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return &Graph{
		engine:   e,
		id:       id,
		pipeline: pipeline,
		bus:      pipeline.GetPipelineBus(),
		logger:   e.logger.With("graph", id),
	}, nil
}

// ChooseFormat implements media.Engine.
func (e *Engine) ChooseFormat(current frame.Format, caps []frame.Format) (frame.Format, bool, error) {
	if e.opts.Chooser == nil {
		return current, false, nil
	}
	return e.opts.Chooser(current, caps)
}
