//go:build linux

package v4l2

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Mode is one raw capture mode: a pixel format at a frame size.
type Mode struct {
	PixelFormat  uint32
	FourCC       string
	Width        int
	Height       int
	BitsPerPixel int
}

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapDeviceCaps   = 0x80000000
)

// Format flags.
const (
	v4l2FmtFlagEmulated = 0x0002
)

// Pixel formats.
const (
	PixFmtRGB24  = 0x33424752 // 'RGB3'
	PixFmtBGR24  = 0x33524742 // 'BGR3'
	PixFmtXBGR32 = 0x34524742 // 'BGR4'
	PixFmtRGB565 = 0x50424752 // 'RGBP'
	PixFmtGREY   = 0x59455247 // 'GREY'
	PixFmtYUYV   = 0x56595559 // 'YUYV'
	PixFmtUYVY   = 0x59565955 // 'UYVY'
	PixFmtNV12   = 0x3231564E // 'NV12'
	PixFmtYU12   = 0x32315559 // 'YU12'
	PixFmtMJPEG  = 0x47504A4D // 'MJPG'
	PixFmtH264   = 0x34363248 // 'H264'
	PixFmtHEVC   = 0x43564548 // 'HEVC'
)

// Frame size types.
const (
	v4l2FrmsizeTypeDiscrete   = 1
	v4l2FrmsizeTypeContinuous = 2
	v4l2FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	v4l2FrmivalTypeDiscrete   = 1
	v4l2FrmivalTypeContinuous = 2
	v4l2FrmivalTypeStepwise   = 3
)

// Buffer type.
const (
	v4l2BufTypeVideoCapture = 1
)
