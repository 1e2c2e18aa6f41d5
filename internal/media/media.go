// Package media defines the boundary to the platform media framework.
//
// The capture graph controller drives an Engine through these interfaces and
// never touches native objects directly. Two engines exist:
//
//   - gstreamer: GStreamer pipelines over V4L2 devices (linux)
//   - synthetic: in-process devices producing generated frames
//
// Every handle returned here owns a native resource and must be released
// exactly once, either explicitly or by removing it from its graph.
package media

import (
	"errors"

	"github.com/smazurov/videofx/internal/frame"
)

// Errors returned by engines.
var (
	ErrUnknownStage  = errors.New("stage does not belong to this graph")
	ErrNoSource      = errors.New("graph has no source stage")
	ErrGraphReleased = errors.New("graph already released")
)

// SourceStageName is the name every engine gives the capture source stage.
const SourceStageName = "source"

// MediaType is the major type of a stage connection.
type MediaType string

// Media types.
const (
	MediaTypeRawVideo MediaType = "video/x-raw"
	MediaTypeEncoded  MediaType = "video/encoded"
)

// Device identifies a selectable capture source.
type Device struct {
	ID   string
	Name string
	Path string
}

// BufferFunc receives the raw bytes of one frame on the engine's delivery
// goroutine. The slice aliases engine memory and may be modified in place.
type BufferFunc func(data []byte) error

// Engine enumerates devices and builds graphs.
type Engine interface {
	// Devices returns all capture devices in enumeration order.
	Devices() ([]Device, error)

	// NewGraph creates an empty capture graph.
	NewGraph() (Graph, error)

	// ChooseFormat runs the interactive format selection. ok is false when
	// the user cancelled and the current format should be kept.
	ChooseFormat(current frame.Format, caps []frame.Format) (chosen frame.Format, ok bool, err error)
}

// Stage is one element in a graph.
type Stage interface {
	Name() string
}

// Graph is a single capture graph from one source to the preview renderer.
type Graph interface {
	// AddSource binds the device and adds it as the source stage.
	AddSource(dev Device) (Stage, error)

	// AddStage adds a buffer-callback stage accepting the given media type.
	AddStage(name string, mediaType MediaType, fn BufferFunc) (Stage, error)

	// FindStage looks up a stage by name.
	FindStage(name string) (Stage, bool)

	// Stages returns every stage in insertion order, source included.
	Stages() []Stage

	// RemoveStage disconnects and releases a stage.
	RemoveStage(s Stage) error

	// Capabilities lists the formats the source can produce, in
	// enumeration order.
	Capabilities(src Stage) ([]frame.Format, error)

	// SetFormat fixes the source output format.
	SetFormat(src Stage, f frame.Format) error

	// Format returns the current source output format.
	Format(src Stage) (frame.Format, error)

	// ConnectedFormat returns the media type and geometry arriving at a
	// stage after Render.
	ConnectedFormat(s Stage) (MediaType, frame.Format, error)

	// Render connects source -> chain... -> preview renderer.
	Render(src Stage, chain []Stage) error

	// Run starts frame delivery.
	Run() error

	// Stop halts frame delivery. It returns once no callback is running.
	Stop() error

	// Window returns the preview surface owned by this graph.
	Window() (Window, error)

	// NextEvent pops one pending graph event. The caller must Release it.
	NextEvent() (Event, bool)

	// Release stops the graph and frees every stage still attached.
	Release() error
}

// Window is a preview surface.
type Window interface {
	SetGeometry(g frame.Geometry) error
	Release() error
}

// EventKind classifies a graph event.
type EventKind string

// Event kinds.
const (
	EventComplete    EventKind = "complete"
	EventError       EventKind = "error"
	EventDeviceLost  EventKind = "device-lost"
	EventStateChange EventKind = "state-change"
	EventOther       EventKind = "other"
)

// Event is one drained graph event. Release frees its parameters.
type Event interface {
	Kind() EventKind
	Message() string
	Release()
}
