// Package frame defines the raw video types shared between the capture
// engines and the per-frame processing chain.
package frame

import (
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a buffer is smaller than height*stride.
var ErrShortBuffer = errors.New("frame buffer shorter than height*stride")

// View is a non-owning view over one delivered frame buffer.
// It is only valid for the duration of the delivery callback; nothing may
// retain Data after the callback returns.
type View struct {
	Data   []byte
	Height int
	Stride int
}

// NewView wraps data with the given geometry, checking that the buffer
// covers every scanline.
func NewView(data []byte, height, stride int) (View, error) {
	if height < 0 || stride < 0 {
		return View{}, fmt.Errorf("invalid geometry %dx%d", height, stride)
	}
	if len(data) < height*stride {
		return View{}, fmt.Errorf("%w: have %d, need %d", ErrShortBuffer, len(data), height*stride)
	}
	return View{Data: data, Height: height, Stride: stride}, nil
}

// Row returns scanline y including any stride padding.
func (v View) Row(y int) []byte {
	start := y * v.Stride
	return v.Data[start : start+v.Stride]
}

// Format describes one negotiated video format.
type Format struct {
	Width        int
	Height       int
	BitsPerPixel int
	// Native is the engine-specific descriptor (caps string, fourcc).
	Native string
}

// Stride returns the row size in bytes for a tightly packed frame.
func (f Format) Stride() int {
	return f.Width * (f.BitsPerPixel / 8)
}

// IsZero reports whether no format has been set.
func (f Format) IsZero() bool {
	return f == Format{}
}

// Matches reports whether width, height and bpp are all equal.
func (f Format) Matches(width, height, bpp int) bool {
	return f.Width == width && f.Height == height && f.BitsPerPixel == bpp
}

// Packed reports whether every pixel occupies whole bytes, which the
// processing stages require. Planar formats such as NV12 are not packed.
func (f Format) Packed() bool {
	return f.BitsPerPixel > 0 && f.BitsPerPixel%8 == 0
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d@%dbpp", f.Width, f.Height, f.BitsPerPixel)
}

// Geometry is a preview surface rectangle in host coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// IsZero reports whether the geometry is unset.
func (g Geometry) IsZero() bool {
	return g == Geometry{}
}
