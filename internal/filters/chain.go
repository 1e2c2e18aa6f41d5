package filters

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/videofx/internal/interceptors"
	"github.com/smazurov/videofx/internal/media"
)

// Chain errors.
var (
	ErrDuplicateStage = errors.New("stage type already registered")
	ErrUnknownStage   = errors.New("unknown stage type")
)

// Descriptor identifies a kind of processing stage.
type Descriptor string

// Known stage descriptors.
const (
	Preprocessing Descriptor = "Preprocessing"
)

// descriptorCategories maps each descriptor to the category it exposes.
var descriptorCategories = map[Descriptor]interceptors.Category{
	Preprocessing: interceptors.Preprocessing,
}

// CategoryOf returns the processing category a descriptor exposes.
func CategoryOf(d Descriptor) (interceptors.Category, bool) {
	c, ok := descriptorCategories[d]
	return c, ok
}

// Chain owns the ordered stage types and the stages built for the current
// graph.
type Chain struct {
	mu          sync.Mutex
	registry    *interceptors.Registry
	observer    Observer
	logger      *slog.Logger
	descriptors []Descriptor
	builders    []*Builder
	graph       media.Graph
}

// NewChain creates an empty chain bound to a registry. observer may be nil.
func NewChain(registry *interceptors.Registry, observer Observer, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		registry: registry,
		observer: observer,
		logger:   logger,
	}
}

// RegisterStageType appends a descriptor. Registration order is build order.
func (c *Chain) RegisterStageType(d Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := descriptorCategories[d]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, d)
	}
	for _, existing := range c.descriptors {
		if existing == d {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, d)
		}
	}
	c.descriptors = append(c.descriptors, d)
	return nil
}

// Descriptors returns the registered descriptors in order.
func (c *Chain) Descriptors() []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Build creates one fresh stage per descriptor in g and returns the native
// handles in order. The last handle is the terminal stage of the chain.
// Any previously built set is discarded first.
func (c *Chain) Build(g media.Graph) ([]media.Stage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.builders = nil
	c.graph = g

	handles := make([]media.Stage, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		category := descriptorCategories[d]
		builder := NewBuilder(string(d), NewStage(category, c.registry, c.observer))

		handle, err := builder.Build(g)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", d, err)
		}

		c.builders = append(c.builders, builder)
		handles = append(handles, handle)
		c.logger.Debug("Stage built", "descriptor", d, "category", category)
	}
	return handles, nil
}

// Configure propagates the connected frame geometry into every built stage.
func (c *Chain) Configure() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.builders {
		if err := b.Configure(c.graph); err != nil {
			return err
		}
		height, stride := b.Stage().Geometry()
		c.logger.Debug("Stage configured", "stage", b.name, "height", height, "stride", stride)
	}
	return nil
}

// Clear forgets the built stages. Registered descriptors are kept.
func (c *Chain) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders = nil
	c.graph = nil
}

// Stages returns the filter stages of the current build.
func (c *Chain) Stages() []*Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Stage, len(c.builders))
	for i, b := range c.builders {
		out[i] = b.Stage()
	}
	return out
}
