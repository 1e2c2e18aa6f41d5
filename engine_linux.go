//go:build linux

package main

import (
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/logging"
	"github.com/smazurov/videofx/internal/media"
	"github.com/smazurov/videofx/internal/media/gstreamer"
)

func newNativeEngine(sink string, chooser func(frame.Format, []frame.Format) (frame.Format, bool, error)) (media.Engine, error) {
	engine, err := gstreamer.New(gstreamer.Options{
		PreviewSink: sink,
		Chooser:     chooser,
		Logger:      logging.GetLogger("media"),
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}
