//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration and capture mode queries.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Capture Modes
//
// Modes lists every raw pixel format and frame size a device offers, in
// driver enumeration order:
//
//	modes, _ := v4l2.Modes("/dev/video0")
//	for _, m := range modes {
//	    fmt.Printf("%s %dx%d %d bpp\n", m.FourCC, m.Width, m.Height, m.BitsPerPixel)
//	}
package v4l2
