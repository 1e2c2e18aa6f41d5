// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/logging"
	"github.com/smazurov/videofx/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Format is one capture format.
type Format struct {
	Width        int    `json:"width" example:"640" minimum:"1" doc:"Frame width in pixels"`
	Height       int    `json:"height" example:"480" minimum:"1" doc:"Frame height in rows"`
	BitsPerPixel int    `json:"bpp" example:"24" minimum:"1" doc:"Bits per pixel"`
	Native       string `json:"native,omitempty" example:"RGB3" doc:"Engine format descriptor"`
}

// FormatFrom converts a frame.Format.
func FormatFrom(f frame.Format) Format {
	return Format{Width: f.Width, Height: f.Height, BitsPerPixel: f.BitsPerPixel, Native: f.Native}
}

// Frame converts back to a frame.Format.
func (f Format) Frame() frame.Format {
	return frame.Format{Width: f.Width, Height: f.Height, BitsPerPixel: f.BitsPerPixel, Native: f.Native}
}

// Device models
type DeviceInfo struct {
	ID       string `json:"id" example:"usb-0000:00:14.0-1" doc:"Stable device identifier"`
	Name     string `json:"name" example:"HD Webcam" doc:"Device name"`
	Path     string `json:"path" example:"/dev/video0" doc:"Device node"`
	Selected bool   `json:"selected" example:"true" doc:"Whether the capture graph is bound to this device"`
}

type DeviceData struct {
	Devices []DeviceInfo `json:"devices" doc:"Capture devices in enumeration order"`
	Count   int          `json:"count" example:"2" doc:"Number of devices"`
}

type DevicesResponse struct {
	Body DeviceData
}

// Capture state models
type Geometry struct {
	X      int `json:"x" example:"0" doc:"Left edge"`
	Y      int `json:"y" example:"0" doc:"Top edge"`
	Width  int `json:"width" example:"640" doc:"Width"`
	Height int `json:"height" example:"480" doc:"Height"`
}

type StateData struct {
	State    string   `json:"state" enum:"uninitialized,stopped,running" example:"running" doc:"Capture graph state"`
	Device   *string  `json:"device,omitempty" example:"usb-0000:00:14.0-1" doc:"Bound device"`
	Format   *Format  `json:"format,omitempty" doc:"Active capture format"`
	BuildID  string   `json:"build_id,omitempty" example:"0b6c6f2e-6a43-4d0e-9a49-3c1e3f6a5a10" doc:"Identifier of the current graph build"`
	Stages   []string `json:"stages,omitempty" example:"[\"source\",\"preprocessing\",\"renderer\"]" doc:"Stages in the live graph"`
	Geometry Geometry `json:"geometry" doc:"Preview window geometry"`
	FPS      float64  `json:"fps" example:"29.97" doc:"Delivered frames per second"`
}

type StateResponse struct {
	Body StateData
}

type FormatsData struct {
	Current *Format  `json:"current,omitempty" doc:"Active format"`
	Formats []Format `json:"formats" doc:"Source capabilities in enumeration order"`
}

type FormatsResponse struct {
	Body FormatsData
}

// Command models
type CommandsData struct {
	Sites    []string             `json:"sites" example:"[\"options\"]" doc:"Extension sites"`
	Commands []hostui.CommandInfo `json:"commands" doc:"Registered commands"`
}

type CommandsResponse struct {
	Body CommandsData
}

type CommandResponse struct {
	Body hostui.CommandInfo
}

// Log models
type LogsData struct {
	Entries []logging.Entry   `json:"entries" doc:"Recent log entries, oldest first"`
	Levels  map[string]string `json:"levels" doc:"Effective level per module"`
}

type LogsResponse struct {
	Body LogsData
}
