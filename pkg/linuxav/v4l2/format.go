//go:build linux

package v4l2

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// stepwiseSizes are offered for drivers that report a size range instead of
// a list.
var stepwiseSizes = []Resolution{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1280, 1024},
	{1920, 1080},
	{1920, 1200},
	{2560, 1440},
	{3840, 2160},
}

// stepwiseRates are offered for drivers that report an interval range.
var stepwiseRates = []Framerate{{1, 60}, {1, 50}, {1, 30}, {1, 25}, {1, 15}, {1, 10}, {1, 5}}

// GetFormats returns the pixel formats a capture device offers.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	h, err := openDevice(devicePath)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	var (
		desc    v4l2Fmtdesc
		formats []FormatInfo
	)
	err = h.enumerate(vidiocEnumFmt,
		func(i uint32) unsafe.Pointer {
			desc = v4l2Fmtdesc{index: i, typ: v4l2BufTypeVideoCapture}
			return unsafe.Pointer(&desc)
		},
		func() bool {
			formats = append(formats, FormatInfo{
				PixelFormat: desc.pixelformat,
				FormatName:  cstr(desc.description[:]),
				Emulated:    desc.flags&v4l2FmtFlagEmulated != 0,
			})
			return true
		})
	return formats, err
}

// GetResolutions returns the frame sizes of a pixel format. Drivers without
// size enumeration yield an empty list.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	h, err := openDevice(devicePath)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	var (
		size  v4l2Frmsizeenum
		sizes []Resolution
	)
	err = h.enumerate(vidiocEnumFramesizes,
		func(i uint32) unsafe.Pointer {
			size = v4l2Frmsizeenum{index: i, pixelFormat: pixelFormat}
			return unsafe.Pointer(&size)
		},
		func() bool {
			if size.typ == v4l2FrmsizeTypeDiscrete {
				sizes = append(sizes, Resolution{Width: size.discrete.width, Height: size.discrete.height})
				return true
			}
			sizes = append(sizes, stepwiseResolutions(&size)...)
			return false
		})
	if errors.Is(err, unix.ENOTTY) {
		return []Resolution{}, nil
	}
	return sizes, err
}

// GetFramerates returns the frame rates of a pixel format at one size.
func GetFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	h, err := openDevice(devicePath)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	var (
		ival  v4l2Frmivalenum
		rates []Framerate
	)
	err = h.enumerate(vidiocEnumFrameintervals,
		func(i uint32) unsafe.Pointer {
			ival = v4l2Frmivalenum{index: i, pixelFormat: pixelFormat, width: width, height: height}
			return unsafe.Pointer(&ival)
		},
		func() bool {
			if ival.typ == v4l2FrmivalTypeDiscrete {
				rates = append(rates, Framerate{Numerator: ival.discrete.numerator, Denominator: ival.discrete.denominator})
				return true
			}
			rates = append(rates, stepwiseRates...)
			return false
		})
	if errors.Is(err, unix.ENOTTY) {
		return []Framerate{}, nil
	}
	return rates, err
}

// stepwiseResolutions picks the well-known sizes inside a stepwise range.
// The stepwise description overlays the discrete one in the kernel union.
func stepwiseResolutions(size *v4l2Frmsizeenum) []Resolution {
	r := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&size.discrete))

	var out []Resolution
	for _, s := range stepwiseSizes {
		if s.Width >= r.minWidth && s.Width <= r.maxWidth && s.Height >= r.minHeight && s.Height <= r.maxHeight {
			out = append(out, s)
		}
	}
	return out
}

// FormatFourCC renders a pixel format as its four character code.
func FormatFourCC(format uint32) string {
	return string([]byte{byte(format), byte(format >> 8), byte(format >> 16), byte(format >> 24)})
}

// ParseFourCC packs a four character code into a pixel format.
func ParseFourCC(s string) (uint32, bool) {
	if len(s) != 4 {
		return 0, false
	}
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24, true
}

// BitsPerPixel returns the packed bits per pixel of a raw pixel format, or 0
// for compressed and unknown formats.
func BitsPerPixel(pixelFormat uint32) int {
	switch pixelFormat {
	case PixFmtXBGR32:
		return 32
	case PixFmtRGB24, PixFmtBGR24:
		return 24
	case PixFmtRGB565, PixFmtYUYV, PixFmtUYVY:
		return 16
	case PixFmtNV12, PixFmtYU12:
		return 12
	case PixFmtGREY:
		return 8
	default:
		return 0
	}
}

// Modes lists every raw capture mode of a device. Compressed formats are
// skipped since frames must be addressable by row.
func Modes(devicePath string) ([]Mode, error) {
	formats, err := GetFormats(devicePath)
	if err != nil {
		return nil, err
	}

	var modes []Mode
	for _, f := range formats {
		bpp := BitsPerPixel(f.PixelFormat)
		if bpp == 0 {
			continue
		}
		sizes, err := GetResolutions(devicePath, f.PixelFormat)
		if err != nil {
			return nil, err
		}
		for _, s := range sizes {
			modes = append(modes, Mode{
				PixelFormat:  f.PixelFormat,
				FourCC:       FormatFourCC(f.PixelFormat),
				Width:        int(s.Width),
				Height:       int(s.Height),
				BitsPerPixel: bpp,
			})
		}
	}
	return modes, nil
}
