package filters

import (
	"errors"
	"fmt"

	"github.com/smazurov/videofx/internal/media"
)

// ErrUnexpectedFormat is returned when a stage is connected to anything
// other than raw video.
var ErrUnexpectedFormat = errors.New("unexpected media format")

// Builder wraps one Stage as a native buffer-callback element.
type Builder struct {
	name   string
	stage  *Stage
	handle media.Stage
}

// NewBuilder creates a builder for stage, using name for the native element.
func NewBuilder(name string, stage *Stage) *Builder {
	return &Builder{name: name, stage: stage}
}

// Stage returns the wrapped filter stage.
func (b *Builder) Stage() *Stage {
	return b.stage
}

// Handle returns the native stage created by Build, or nil.
func (b *Builder) Handle() media.Stage {
	return b.handle
}

// Build adds the callback element to g with a raw video media type.
func (b *Builder) Build(g media.Graph) (media.Stage, error) {
	handle, err := g.AddStage(b.name, media.MediaTypeRawVideo, b.stage.Receive)
	if err != nil {
		return nil, fmt.Errorf("add stage %s: %w", b.name, err)
	}
	b.handle = handle
	return handle, nil
}

// Configure reads the connected geometry and pushes height and stride into
// the stage. It must run after the graph is rendered.
func (b *Builder) Configure(g media.Graph) error {
	if b.handle == nil {
		return fmt.Errorf("configure %s: stage not built", b.name)
	}

	mediaType, f, err := g.ConnectedFormat(b.handle)
	if err != nil {
		return fmt.Errorf("configure %s: %w", b.name, err)
	}
	if mediaType != media.MediaTypeRawVideo {
		return fmt.Errorf("configure %s: %w: %s", b.name, ErrUnexpectedFormat, mediaType)
	}
	if !f.Packed() {
		return fmt.Errorf("configure %s: %w: %d bits per pixel", b.name, ErrUnexpectedFormat, f.BitsPerPixel)
	}

	b.stage.SetGeometry(f.Height, f.Width*(f.BitsPerPixel/8))
	return nil
}
