// Package effects provides simple in-place image effects as a plugin.
package effects

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/interceptors"
)

// Kind selects the transform an Invert interceptor runs.
type Kind int32

// Supported effects.
const (
	KindNone Kind = iota
	KindNegate
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNegate:
		return "negate"
	default:
		return fmt.Sprintf("Kind(%d)", int32(k))
	}
}

// ParseKind parses an effect name as used in configuration.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone, nil
	case "negate", "invert":
		return KindNegate, nil
	default:
		return KindNone, fmt.Errorf("unknown effect %q", s)
	}
}

// Invert is a preprocessing interceptor with a runtime switch. Enabled and
// Effect are toggled from the control goroutine and read on every frame.
type Invert struct {
	enabled atomic.Bool
	kind    atomic.Int32
}

// NewInvert creates a disabled interceptor.
func NewInvert() *Invert {
	return &Invert{}
}

// Category implements interceptors.Interceptor.
func (i *Invert) Category() interceptors.Category {
	return interceptors.Preprocessing
}

// Enable turns the selected effect on.
func (i *Invert) Enable() { i.enabled.Store(true) }

// Disable turns all effects off.
func (i *Invert) Disable() { i.enabled.Store(false) }

// Enabled reports whether an effect runs.
func (i *Invert) Enabled() bool { return i.enabled.Load() }

// SetEffect selects the transform. Selecting a transform other than KindNone
// also enables the interceptor.
func (i *Invert) SetEffect(k Kind) {
	i.kind.Store(int32(k))
	if k != KindNone {
		i.enabled.Store(true)
	}
}

// Effect returns the selected transform.
func (i *Invert) Effect() Kind {
	return Kind(i.kind.Load())
}

// Preprocess implements interceptors.Preprocessor.
func (i *Invert) Preprocess(v frame.View) error {
	if !i.enabled.Load() {
		return nil
	}
	if Kind(i.kind.Load()) == KindNegate {
		Negate(v)
	}
	return nil
}

// Negate XORs every byte of every scanline with 0xFF. Rows are walked by
// stride, so padding bytes past the visible width are flipped too.
func Negate(v frame.View) {
	for y := 0; y < v.Height; y++ {
		row := v.Row(y)
		for x := range row {
			row[x] ^= 0xFF
		}
	}
}
