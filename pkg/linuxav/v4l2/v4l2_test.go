//go:build linux

package v4l2

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   PixFmtYUYV,
			expected: "YUYV",
		},
		{
			name:     "MJPEG format",
			format:   PixFmtMJPEG,
			expected: "MJPG",
		},
		{
			name:     "H264 format",
			format:   PixFmtH264,
			expected: "H264",
		},
		{
			name:     "HEVC format",
			format:   PixFmtHEVC,
			expected: "HEVC",
		},
		{
			name:     "NV12 format",
			format:   PixFmtNV12,
			expected: "NV12",
		},
		{
			name:     "null bytes",
			format:   0x00000000,
			expected: "\x00\x00\x00\x00",
		},
		{
			name:     "all 0xFF bytes",
			format:   0xFFFFFFFF,
			expected: "\xFF\xFF\xFF\xFF",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{
			name:        "60 fps (1/60)",
			framerate:   Framerate{Numerator: 1, Denominator: 60},
			expectedFPS: 60.0,
		},
		{
			name:        "30 fps (1/30)",
			framerate:   Framerate{Numerator: 1, Denominator: 30},
			expectedFPS: 30.0,
		},
		{
			name:        "29.97 fps (1001/30000)",
			framerate:   Framerate{Numerator: 1001, Denominator: 30000},
			expectedFPS: 30000.0 / 1001.0, // ~29.97
		},
		{
			name:        "25 fps (1/25)",
			framerate:   Framerate{Numerator: 1, Denominator: 25},
			expectedFPS: 25.0,
		},
		{
			name:        "zero numerator returns 0",
			framerate:   Framerate{Numerator: 0, Denominator: 60},
			expectedFPS: 0.0,
		},
		{
			name:        "zero denominator with non-zero numerator",
			framerate:   Framerate{Numerator: 1, Denominator: 0},
			expectedFPS: 0.0, // Division by numerator=1 gives 0/1=0
		},
		{
			name:        "both zero",
			framerate:   Framerate{Numerator: 0, Denominator: 0},
			expectedFPS: 0.0,
		},
		{
			name:        "large values",
			framerate:   Framerate{Numerator: 1000000, Denominator: 60000000},
			expectedFPS: 60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			// Use approximate comparison for floating point
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("Framerate{%d, %d}.FPS() = %f, want %f",
					tt.framerate.Numerator, tt.framerate.Denominator,
					result, tt.expectedFPS)
			}
		})
	}
}

func TestBitsPerPixel(t *testing.T) {
	tests := []struct {
		fourcc string
		want   int
	}{
		{"RGB3", 24},
		{"BGR3", 24},
		{"BGR4", 32},
		{"YUYV", 16},
		{"NV12", 12},
		{"GREY", 8},
		{"MJPG", 0},
		{"H264", 0},
	}

	for _, tt := range tests {
		t.Run(tt.fourcc, func(t *testing.T) {
			pf, ok := ParseFourCC(tt.fourcc)
			if !ok {
				t.Fatalf("ParseFourCC(%q) failed", tt.fourcc)
			}
			if got := BitsPerPixel(pf); got != tt.want {
				t.Errorf("BitsPerPixel(%s) = %d, want %d", tt.fourcc, got, tt.want)
			}
			if got := FormatFourCC(pf); got != tt.fourcc {
				t.Errorf("round trip = %q, want %q", got, tt.fourcc)
			}
		})
	}

	if _, ok := ParseFourCC("RGB"); ok {
		t.Error("expected a three character code to be rejected")
	}
}

func TestStepwiseResolutions(t *testing.T) {
	frmsize := v4l2Frmsizeenum{typ: v4l2FrmsizeTypeStepwise}
	stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))
	stepwise.minWidth, stepwise.maxWidth = 320, 1280
	stepwise.minHeight, stepwise.maxHeight = 240, 720

	got := stepwiseResolutions(&frmsize)
	if len(got) == 0 {
		t.Fatal("expected resolutions within range")
	}
	for _, r := range got {
		if r.Width < 320 || r.Width > 1280 || r.Height < 240 || r.Height > 720 {
			t.Errorf("resolution %dx%d outside stepwise range", r.Width, r.Height)
		}
	}
	if got[0] != (Resolution{Width: 320, Height: 240}) {
		t.Errorf("expected 320x240 first, got %+v", got[0])
	}
}

func fakeCapability(card, bus string, caps uint32) v4l2Capability {
	var c v4l2Capability
	copy(c.card[:], card)
	copy(c.busInfo[:], bus)
	c.capabilities = caps | v4l2CapDeviceCaps
	c.deviceCaps = caps
	return c
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindDevicesLayout(t *testing.T) {
	root := t.TempDir()
	l := layout{
		class: filepath.Join(root, "class"),
		dev:   filepath.Join(root, "dev"),
		byID:  filepath.Join(root, "by-id"),
	}
	writeFile(t, filepath.Join(l.class, "video0", "index"), "0\n")
	writeFile(t, filepath.Join(l.class, "video1", "index"), "1\n")
	writeFile(t, filepath.Join(l.class, "video2", "index"), "0\n")
	writeFile(t, filepath.Join(l.class, "video3", "index"), "0\n")
	if err := os.MkdirAll(l.byID, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../../video0", filepath.Join(l.byID, "usb-Acme_Cam_123-video-index0")); err != nil {
		t.Fatal(err)
	}

	query := func(node string) (v4l2Capability, error) {
		switch filepath.Base(node) {
		case "video0":
			return fakeCapability("Acme Cam", "usb-0000:00:14.0-1", v4l2CapVideoCapture), nil
		case "video1":
			// metadata node of the same camera
			return fakeCapability("Acme Cam", "usb-0000:00:14.0-1", 0x00800000), nil
		case "video2":
			return fakeCapability("HDMI In", "platform:hdmirx", v4l2CapVideoCapture), nil
		default:
			return v4l2Capability{}, unix.EACCES
		}
	}

	devs, err := l.find(query)
	if err != nil {
		t.Fatal(err)
	}
	if len(devs) != 2 {
		t.Fatalf("expected 2 capture devices, got %+v", devs)
	}
	if devs[0].DeviceID != "usb-Acme_Cam_123-video-index0" || devs[0].DeviceName != "Acme Cam" {
		t.Errorf("unexpected first device %+v", devs[0])
	}
	if devs[0].DevicePath != filepath.Join(l.dev, "video0") {
		t.Errorf("unexpected path %s", devs[0].DevicePath)
	}
	if devs[1].DeviceID != "platform-platform:hdmirx-video-index0" {
		t.Errorf("expected fallback id, got %s", devs[1].DeviceID)
	}
}

func TestFindDevicesWithoutClass(t *testing.T) {
	l := layout{class: filepath.Join(t.TempDir(), "missing")}
	devs, err := l.find(func(string) (v4l2Capability, error) {
		return v4l2Capability{}, errors.New("not reached")
	})
	if err != nil || len(devs) != 0 {
		t.Errorf("expected no devices and no error, got %v %v", devs, err)
	}
}

func TestFallbackID(t *testing.T) {
	if got := fallbackID("usb-0000:00:14.0-2", 1); got != "usb-0000:00:14.0-2-video-index1" {
		t.Errorf("unexpected usb fallback %q", got)
	}
	if got := fallbackID("platform:rkisp", 0); got != "platform-platform:rkisp-video-index0" {
		t.Errorf("unexpected platform fallback %q", got)
	}
}
