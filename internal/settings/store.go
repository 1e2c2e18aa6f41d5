// Package settings persists user choices between runs in a TOML file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "videofx-settings.toml"

// file is the on-disk layout.
type file struct {
	Version int     `toml:"version"`
	Capture capture `toml:"capture"`
}

type capture struct {
	Device string `toml:"device,omitempty"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Bpp    int    `toml:"bpp"`
}

// Store is a TOML-backed settings store. Every Save rewrites the file
// atomically.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewTOML creates a store for path.
func NewTOML(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the last saved format. ok is false when nothing usable was
// saved. A missing file is not an error.
func (s *Store) Load() (width, height, bpp int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return 0, 0, 0, false, err
	}
	c := f.Capture
	if c.Width <= 0 || c.Height <= 0 || c.Bpp <= 0 {
		return 0, 0, 0, false, nil
	}
	return c.Width, c.Height, c.Bpp, true, nil
}

// Save stores the negotiated format.
func (s *Store) Save(width, height, bpp int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	f.Capture.Width, f.Capture.Height, f.Capture.Bpp = width, height, bpp
	return s.write(f)
}

// Device returns the last selected device ID, or "".
func (s *Store) Device() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return "", err
	}
	return f.Capture.Device, nil
}

// SaveDevice stores the selected device ID.
func (s *Store) SaveDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	f.Capture.Device = id
	return s.write(f)
}

func (s *Store) read() (*file, error) {
	f := &file{Version: 1}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if f.Version == 0 {
		f.Version = 1
	}
	return f, nil
}

func (s *Store) write(f *file) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
