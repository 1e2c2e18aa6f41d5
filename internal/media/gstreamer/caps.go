//go:build linux

package gstreamer

import (
	"fmt"
	"strings"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/pkg/linuxav/v4l2"
)

// gstFormats maps V4L2 four character codes to GStreamer raw video formats.
// Only packed formats are listed; the processing stages address whole bytes
// per pixel.
var gstFormats = map[string]string{
	"RGB3": "RGB",
	"BGR3": "BGR",
	"BGR4": "BGRx",
	"RGBP": "RGB16",
	"GREY": "GRAY8",
	"YUYV": "YUY2",
	"UYVY": "UYVY",
}

// rawCaps returns the caps string that pins a source to f.
func rawCaps(f frame.Format) (string, error) {
	name, ok := gstFormats[f.Native]
	if !ok {
		return "", fmt.Errorf("no raw video format for %q", f.Native)
	}
	return fmt.Sprintf("%s,format=%s,width=%d,height=%d", mediaTypeRaw, name, f.Width, f.Height), nil
}

// previewCaps scales the preview to the window size. A zero size leaves the
// preview unconstrained.
func previewCaps(g frame.Geometry) string {
	if g.Width <= 0 || g.Height <= 0 {
		return mediaTypeRaw
	}
	return fmt.Sprintf("%s,width=%d,height=%d", mediaTypeRaw, g.Width, g.Height)
}

// formatsFromModes converts enumerated modes, skipping those GStreamer has
// no raw format for and duplicates.
func formatsFromModes(modes []v4l2.Mode) []frame.Format {
	seen := make(map[frame.Format]bool, len(modes))
	out := make([]frame.Format, 0, len(modes))
	for _, m := range modes {
		if _, ok := gstFormats[m.FourCC]; !ok {
			continue
		}
		f := frame.Format{Width: m.Width, Height: m.Height, BitsPerPixel: m.BitsPerPixel, Native: m.FourCC}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// deviceLost reports whether an error message means the capture device went
// away.
func deviceLost(msg string) bool {
	msg = strings.ToLower(msg)
	for _, s := range []string{"no such device", "has been disconnected", "no such file or directory"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
