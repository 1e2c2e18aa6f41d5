//go:build !linux

package main

import (
	"errors"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/media"
)

func newNativeEngine(string, func(frame.Format, []frame.Format) (frame.Format, bool, error)) (media.Engine, error) {
	return nil, errors.New("V4L2 capture requires Linux, run with --capture-simulate")
}
