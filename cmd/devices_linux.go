//go:build linux

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/videofx/pkg/linuxav/v4l2"
)

func collectDevices() ([]DeviceReport, error) {
	devs, err := v4l2.FindDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	reports := make([]DeviceReport, 0, len(devs))
	for _, d := range devs {
		r := DeviceReport{ID: d.DeviceID, Name: d.DeviceName, Path: d.DevicePath}
		formats, err := v4l2.GetFormats(d.DevicePath)
		if err != nil {
			r.Error = err.Error()
			reports = append(reports, r)
			continue
		}
		for _, f := range formats {
			line := FormatLine{
				FourCC:       v4l2.FormatFourCC(f.PixelFormat),
				Description:  f.FormatName,
				BitsPerPixel: v4l2.BitsPerPixel(f.PixelFormat),
			}
			sizes, err := v4l2.GetResolutions(d.DevicePath, f.PixelFormat)
			if err == nil {
				for _, s := range sizes {
					line.Sizes = append(line.Sizes, sizeLine(d.DevicePath, f.PixelFormat, s))
				}
			}
			r.Formats = append(r.Formats, line)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func sizeLine(path string, pixelFormat uint32, s v4l2.Resolution) string {
	size := fmt.Sprintf("%dx%d", s.Width, s.Height)
	rates, err := v4l2.GetFramerates(path, pixelFormat, s.Width, s.Height)
	if err != nil || len(rates) == 0 {
		return size
	}
	fps := make([]string, len(rates))
	for i, r := range rates {
		fps[i] = strconv.FormatFloat(r.FPS(), 'g', 4, 64)
	}
	return size + " @ " + strings.Join(fps, ", ") + " fps"
}
