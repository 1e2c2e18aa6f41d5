// Package filters turns interceptor categories into native graph stages.
//
// A Stage fans one delivered frame out to every interceptor of its category.
// A Builder wraps a Stage as a buffer-callback element in a media.Graph. A
// Chain owns the ordered set of stage descriptors and rebuilds the stages
// for every graph.
package filters

import (
	"fmt"
	"sync/atomic"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/interceptors"
)

// Observer is notified about every frame a stage handles. It runs on the
// delivery goroutine and must not block.
type Observer interface {
	FrameDelivered(c interceptors.Category)
	FrameFailed(c interceptors.Category, err error)
}

// Stage exposes one processing category to the capture graph.
type Stage struct {
	category interceptors.Category
	registry *interceptors.Registry
	observer Observer

	height atomic.Int64
	stride atomic.Int64
}

// NewStage creates a stage for a category. observer may be nil.
func NewStage(category interceptors.Category, registry *interceptors.Registry, observer Observer) *Stage {
	return &Stage{
		category: category,
		registry: registry,
		observer: observer,
	}
}

// Category returns the processing category of this stage.
func (s *Stage) Category() interceptors.Category {
	return s.category
}

// SetGeometry sets the frame height and stride used to build views.
func (s *Stage) SetGeometry(height, stride int) {
	s.height.Store(int64(height))
	s.stride.Store(int64(stride))
}

// Geometry returns the configured frame height and stride.
func (s *Stage) Geometry() (height, stride int) {
	return int(s.height.Load()), int(s.stride.Load())
}

// Receive is the engine buffer callback.
func (s *Stage) Receive(data []byte) error {
	height, stride := s.Geometry()
	view, err := frame.NewView(data, height, stride)
	if err != nil {
		s.failed(err)
		return fmt.Errorf("%s stage: %w", s.category, err)
	}
	return s.Deliver(view)
}

// Deliver runs every interceptor of the stage category on v, in
// registration order, through the category's entry point. Later
// interceptors see earlier mutations. The first error aborts this frame
// only.
func (s *Stage) Deliver(v frame.View) error {
	for i, ic := range s.registry.Query(s.category) {
		if err := s.registry.Run(s.category, ic, v); err != nil {
			err = fmt.Errorf("%s interceptor %d (%T): %w", s.category, i, ic, err)
			s.failed(err)
			return err
		}
	}
	if s.observer != nil {
		s.observer.FrameDelivered(s.category)
	}
	return nil
}

func (s *Stage) failed(err error) {
	if s.observer != nil {
		s.observer.FrameFailed(s.category, err)
	}
}
