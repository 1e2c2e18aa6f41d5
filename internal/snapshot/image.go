package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/smazurov/videofx/internal/frame"
)

// ErrUnsupportedFormat is returned for pixel formats Decode cannot convert.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// Decode converts a grabbed frame in format f to RGBA.
func Decode(fr Frame, f frame.Format) (*image.RGBA, error) {
	bytesPerPixel := f.BitsPerPixel / 8
	if f.Width <= 0 || f.Height <= 0 || bytesPerPixel <= 0 {
		return nil, fmt.Errorf("invalid format %s", f)
	}
	if fr.Height < f.Height || fr.Stride < f.Width*bytesPerPixel {
		return nil, fmt.Errorf("frame %d rows x %d bytes does not hold %s", fr.Height, fr.Stride, f)
	}
	if len(fr.Data) < f.Height*fr.Stride {
		return nil, frame.ErrShortBuffer
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	var put func(row []byte, y int)

	switch f.Native {
	case "RGB3", "BGR3", "BGR4":
		r, b := 0, 2
		if f.Native != "RGB3" {
			r, b = 2, 0
		}
		put = func(row []byte, y int) {
			for x := 0; x < f.Width; x++ {
				p := row[x*bytesPerPixel:]
				img.SetRGBA(x, y, color.RGBA{R: p[r], G: p[1], B: p[b], A: 0xFF})
			}
		}
	case "GREY":
		put = func(row []byte, y int) {
			for x := 0; x < f.Width; x++ {
				img.SetRGBA(x, y, color.RGBA{R: row[x], G: row[x], B: row[x], A: 0xFF})
			}
		}
	case "YUYV", "UYVY":
		y0, cb, y1, cr := 0, 1, 2, 3
		if f.Native == "UYVY" {
			y0, cb, y1, cr = 1, 0, 3, 2
		}
		put = func(row []byte, y int) {
			for x := 0; x+1 < f.Width; x += 2 {
				p := row[x*2:]
				r, g, b := color.YCbCrToRGB(p[y0], p[cb], p[cr])
				img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
				r, g, b = color.YCbCrToRGB(p[y1], p[cb], p[cr])
				img.SetRGBA(x+1, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.Native)
	}

	for y := 0; y < f.Height; y++ {
		put(fr.Data[y*fr.Stride:(y+1)*fr.Stride], y)
	}
	return img, nil
}

// Thumbnail scales img down to maxWidth, keeping the aspect ratio. Images
// already narrower are returned unchanged.
func Thumbnail(img *image.RGBA, maxWidth int) *image.RGBA {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := max(1, b.Dy()*maxWidth/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Caption draws text on a dark band along the bottom edge of img.
func Caption(img *image.RGBA, text string) {
	if text == "" {
		return
	}
	dc := gg.NewContextForRGBA(img)
	w, h := float64(dc.Width()), float64(dc.Height())
	const band = 18

	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(0, h-band, w, band)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, 4, h-band/2, 0, 0.35)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}
