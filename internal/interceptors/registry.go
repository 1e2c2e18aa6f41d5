// Package interceptors holds the registry of pluggable per-frame processors.
//
// Every interceptor belongs to exactly one processing category. Categories
// are a fixed list known at compile time; each one is bound to the Go
// interface its interceptors must implement. Registration resolves the
// category by tag and verifies the interface, so an interceptor can never
// be filed under zero or several categories.
//
// Lookups are lock-free: writers publish a new immutable snapshot, and the
// frame delivery path only loads the current one.
package interceptors

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smazurov/videofx/internal/frame"
)

// Registration errors.
var (
	ErrUnknownCategory  = errors.New("unknown processing category")
	ErrCategoryMismatch = errors.New("interceptor does not implement its category interface")
	ErrNilInterceptor   = errors.New("nil interceptor")
)

// Category tags a kind of per-frame work.
type Category string

// Known categories.
const (
	Preprocessing Category = "preprocessing"
)

// Interceptor is a registered frame processor.
type Interceptor interface {
	Category() Category
}

// Preprocessor runs on raw frames before they reach the renderer.
// Implementations mutate the view in place and must not retain it.
type Preprocessor interface {
	Interceptor
	Preprocess(v frame.View) error
}

// categorySpec binds a tag to its interface check and entry point.
type categorySpec struct {
	tag        Category
	implements func(Interceptor) bool
	run        func(Interceptor, frame.View) error
}

// KnownCategories lists every category in declaration order.
var KnownCategories = []Category{Preprocessing}

var categorySpecs = map[Category]categorySpec{
	Preprocessing: {
		tag: Preprocessing,
		implements: func(i Interceptor) bool {
			_, ok := i.(Preprocessor)
			return ok
		},
		run: func(i Interceptor, v frame.View) error {
			return i.(Preprocessor).Preprocess(v)
		},
	},
}

// CategoryError describes an interceptor that could not be filed.
type CategoryError struct {
	Category Category
	Type     string
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("interceptor %s with category %q: %v", e.Type, e.Category, e.Err)
}

func (e *CategoryError) Unwrap() error {
	return e.Err
}

// Registry is the type-keyed store of interceptors.
type Registry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[map[Category][]Interceptor]
	specs    map[Category]categorySpec
}

// NewRegistry creates a registry for the known categories.
func NewRegistry() *Registry {
	r := &Registry{specs: categorySpecs}
	empty := make(map[Category][]Interceptor)
	r.snapshot.Store(&empty)
	return r
}

// Resolve returns the category an interceptor would be filed under.
func (r *Registry) Resolve(i Interceptor) (Category, error) {
	if i == nil {
		return "", ErrNilInterceptor
	}
	tag := i.Category()
	spec, ok := r.specs[tag]
	if !ok {
		return "", &CategoryError{Category: tag, Type: fmt.Sprintf("%T", i), Err: ErrUnknownCategory}
	}
	if !spec.implements(i) {
		return "", &CategoryError{Category: tag, Type: fmt.Sprintf("%T", i), Err: ErrCategoryMismatch}
	}
	return spec.tag, nil
}

// Run invokes i on v through the entry point of category c.
func (r *Registry) Run(c Category, i Interceptor, v frame.View) error {
	spec, ok := r.specs[c]
	if !ok {
		return &CategoryError{Category: c, Type: fmt.Sprintf("%T", i), Err: ErrUnknownCategory}
	}
	if !spec.implements(i) {
		return &CategoryError{Category: c, Type: fmt.Sprintf("%T", i), Err: ErrCategoryMismatch}
	}
	return spec.run(i, v)
}

// Register appends an interceptor to its category list.
func (r *Registry) Register(i Interceptor) error {
	tag, err := r.Resolve(i)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make(map[Category][]Interceptor, len(current)+1)
	for c, list := range current {
		next[c] = list
	}
	// Copy so readers holding the old slice never see the append.
	list := make([]Interceptor, len(current[tag]), len(current[tag])+1)
	copy(list, current[tag])
	next[tag] = append(list, i)

	r.snapshot.Store(&next)
	return nil
}

// Query returns the interceptors of a category in registration order.
// The result is shared and must not be modified.
func (r *Registry) Query(c Category) []Interceptor {
	if list, ok := (*r.snapshot.Load())[c]; ok {
		return list
	}
	return []Interceptor{}
}

// Count returns the total number of registered interceptors.
func (r *Registry) Count() int {
	n := 0
	for _, list := range *r.snapshot.Load() {
		n += len(list)
	}
	return n
}

// Categories returns the known category tags.
func (r *Registry) Categories() []Category {
	out := make([]Category, len(KnownCategories))
	copy(out, KnownCategories)
	return out
}
