// Package plugins loads the compiled-in plugins and registers their
// interceptors.
//
// Plugins are plain values implementing Plugin. A StaticLoader holds one
// factory per plugin name; an optional TOML manifest selects and orders the
// plugins to load:
//
//	# plugins.toml
//	enabled = ["effects", "snapshot"]
//
// Without a manifest every registered plugin loads in registration order.
package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/interceptors"
)

// Plugin errors.
var (
	ErrUnknownPlugin   = errors.New("unknown plugin")
	ErrDuplicatePlugin = errors.New("plugin already registered")
)

// Plugin is a loadable extension.
type Plugin interface {
	Name() string
	InitUI(host hostui.Host) error
	GetInterceptors() []interceptors.Interceptor
}

// Loader discovers plugins.
type Loader interface {
	Load() ([]Plugin, error)
}

// Factory creates a plugin instance.
type Factory func() Plugin

// Manifest is the plugin manifest file.
type Manifest struct {
	Enabled []string `toml:"enabled"`
}

// LoadManifest reads a manifest. A missing file yields a nil manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse plugin manifest: %w", err)
	}
	return &m, nil
}

// StaticLoader loads plugins from compiled-in factories.
type StaticLoader struct {
	mu           sync.Mutex
	order        []string
	factories    map[string]Factory
	manifestPath string
}

// NewStaticLoader creates a loader. manifestPath may be empty.
func NewStaticLoader(manifestPath string) *StaticLoader {
	return &StaticLoader{
		factories:    make(map[string]Factory),
		manifestPath: manifestPath,
	}
}

// Register adds a factory under name.
func (l *StaticLoader) Register(name string, f Factory) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
	}
	l.factories[name] = f
	l.order = append(l.order, name)
	return nil
}

// RegisterInstances registers already constructed plugins under their own
// names, in order. It stops at the first error.
func (l *StaticLoader) RegisterInstances(ps ...Plugin) error {
	for _, p := range ps {
		if err := l.Register(p.Name(), func() Plugin { return p }); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the registered plugin names in registration order.
func (l *StaticLoader) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Load implements Loader.
func (l *StaticLoader) Load() ([]Plugin, error) {
	names := l.Names()

	if l.manifestPath != "" {
		m, err := LoadManifest(l.manifestPath)
		if err != nil {
			return nil, err
		}
		if m != nil {
			names = m.Enabled
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(names))
	out := make([]Plugin, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		f, ok := l.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
		}
		out = append(out, f())
	}
	return out, nil
}

// LoadAll loads every plugin, lets it install its commands and registers its
// interceptors once. The first failure aborts loading.
func LoadAll(loader Loader, host hostui.Host, registry *interceptors.Registry, logger *slog.Logger) ([]Plugin, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loaded, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load plugins: %w", err)
	}

	for _, p := range loaded {
		if err := p.InitUI(host); err != nil {
			return nil, fmt.Errorf("plugin %s: init ui: %w", p.Name(), err)
		}
		ics := p.GetInterceptors()
		for _, ic := range ics {
			if err := registry.Register(ic); err != nil {
				return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
			}
		}
		logger.Info("Plugin loaded", "plugin", p.Name(), "interceptors", len(ics))
	}
	return loaded, nil
}
