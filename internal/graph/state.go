package graph

import (
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
)

// State represents the current state of the capture graph.
type State string

// Pipeline states.
const (
	StateUninitialized State = "uninitialized" // No native resources held
	StateStopped       State = "stopped"       // Delivery halted, graph may exist
	StateRunning       State = "running"       // Frames flowing
)

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State    State
	Device   media.Device
	Bound    bool
	Format   frame.Format
	BuildID  string
	Stages   []string
	Geometry frame.Geometry
}
