package events

// Event type constants for kelindar/event.
const (
	TypePipelineStateChanged uint32 = iota + 1
	TypeDeviceSelected
	TypeFormatNegotiated
	TypeGraphRebuilt
	TypeSetupFailed
	TypeGraphNotice
	TypeFrameRate
	TypeDeviceDiscovery
	TypeCommandInvoked
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PipelineStateChangedEvent is published on every capture graph state transition.
type PipelineStateChangedEvent struct {
	BuildID   string `json:"build_id,omitempty" example:"0b6c6f2e-6a43-4d0e-9a49-3c1e3f6a5a10" doc:"Identifier of the current graph build"`
	DeviceID  string `json:"device_id,omitempty" example:"video0" doc:"Bound device, if any"`
	From      string `json:"from" example:"stopped" doc:"Previous state"`
	To        string `json:"to" example:"running" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PipelineStateChangedEvent.
func (e PipelineStateChangedEvent) Type() uint32 { return TypePipelineStateChanged }

// DeviceSelectedEvent is published when a capture device becomes bound.
type DeviceSelectedEvent struct {
	DeviceID   string `json:"device_id" example:"video0" doc:"Device identifier"`
	DeviceName string `json:"device_name" example:"USB Capture HDMI" doc:"Human readable device name"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Device node or URI"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceSelectedEvent.
func (e DeviceSelectedEvent) Type() uint32 { return TypeDeviceSelected }

// FormatNegotiatedEvent reports the format applied to the source stage.
type FormatNegotiatedEvent struct {
	DeviceID     string `json:"device_id" example:"video0" doc:"Device identifier"`
	Width        int    `json:"width" example:"640" doc:"Frame width in pixels"`
	Height       int    `json:"height" example:"480" doc:"Frame height in pixels"`
	BitsPerPixel int    `json:"bpp" example:"24" doc:"Bits per pixel"`
	Native       string `json:"native,omitempty" example:"RGB3" doc:"Engine specific format descriptor"`
	Origin       string `json:"origin" example:"persisted" doc:"How the format was chosen: persisted, interactive, reapplied, requested"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FormatNegotiatedEvent.
func (e FormatNegotiatedEvent) Type() uint32 { return TypeFormatNegotiated }

// GraphRebuiltEvent is published after the processing stages were rebuilt and
// delivery resumed.
type GraphRebuiltEvent struct {
	BuildID   string   `json:"build_id" example:"0b6c6f2e-6a43-4d0e-9a49-3c1e3f6a5a10" doc:"Identifier of the graph build"`
	DeviceID  string   `json:"device_id" example:"video0" doc:"Device identifier"`
	Stages    []string `json:"stages" doc:"Processing stage names in delivery order"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for GraphRebuiltEvent.
func (e GraphRebuiltEvent) Type() uint32 { return TypeGraphRebuilt }

// SetupFailedEvent is the single unrecoverable setup notification.
type SetupFailedEvent struct {
	DeviceID  string `json:"device_id" example:"video0" doc:"Device that failed to bind"`
	Error     string `json:"error" example:"bind video0: device busy" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SetupFailedEvent.
func (e SetupFailedEvent) Type() uint32 { return TypeSetupFailed }

// GraphNoticeEvent carries one drained native graph event.
type GraphNoticeEvent struct {
	BuildID   string `json:"build_id" example:"0b6c6f2e-6a43-4d0e-9a49-3c1e3f6a5a10" doc:"Identifier of the graph build"`
	Kind      string `json:"kind" example:"error" doc:"Event kind: complete, error, device-lost, state-change, other"`
	Message   string `json:"message" doc:"Engine supplied message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for GraphNoticeEvent.
func (e GraphNoticeEvent) Type() uint32 { return TypeGraphNotice }

// FrameRateEvent is the periodic frame rate sample.
type FrameRateEvent struct {
	FPS       float64 `json:"fps" example:"29.97" doc:"Frames per second over the last interval"`
	Frames    uint64  `json:"frames" example:"1200" doc:"Frames delivered since start"`
	Faults    uint64  `json:"faults" example:"0" doc:"Frames aborted by an interceptor"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Sample timestamp"`
}

// Type returns the event type identifier for FrameRateEvent.
func (e FrameRateEvent) Type() uint32 { return TypeFrameRate }

// DeviceDiscoveryEvent represents device hotplug events.
type DeviceDiscoveryEvent struct {
	DeviceID   string `json:"device_id" example:"video0" doc:"Device identifier"`
	DeviceName string `json:"device_name,omitempty" example:"USB Capture HDMI" doc:"Human readable device name"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Action     string `json:"action" example:"added" doc:"Action type: added, removed"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// CommandInvokedEvent is published when a host command runs.
type CommandInvokedEvent struct {
	CommandID string `json:"command_id" example:"effects/invert" doc:"Command identifier"`
	Checked   bool   `json:"checked" example:"true" doc:"Check state after invocation, for checkable commands"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommandInvokedEvent.
func (e CommandInvokedEvent) Type() uint32 { return TypeCommandInvoked }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"graph" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
