// Package devices tracks capture device arrival and removal and announces
// changes on the event bus.
package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/logging"
	"github.com/smazurov/videofx/internal/media"
)

// Discovery actions.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
	ActionChanged = "changed"
)

// DefaultSettleDelay gives a newly plugged device time to finish probing
// before it is enumerated.
const DefaultSettleDelay = time.Second

// Lister enumerates capture devices. media.Engine satisfies it.
type Lister interface {
	Devices() ([]media.Device, error)
}

// Options configures a Monitor.
type Options struct {
	Lister   Lister
	EventBus *events.Bus
	// OnRemoved runs for every device that disappears.
	OnRemoved   func(media.Device)
	SettleDelay time.Duration
	Logger      *slog.Logger
}

// Monitor diffs successive device enumerations.
type Monitor struct {
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	lastDevices map[string]media.Device
}

// NewMonitor creates a monitor. Nothing is enumerated until Scan.
func NewMonitor(opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("devices")
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Monitor{
		opts:        opts,
		logger:      opts.Logger,
		lastDevices: make(map[string]media.Device),
	}
}

// Known returns the devices seen by the last scan.
func (m *Monitor) Known() map[string]media.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]media.Device, len(m.lastDevices))
	for id, dev := range m.lastDevices {
		out[id] = dev
	}
	return out
}

// Scan enumerates devices and publishes one discovery event per added,
// removed or changed device.
func (m *Monitor) Scan() error {
	devices, err := m.opts.Lister.Devices()
	if err != nil {
		m.logger.Error("Error enumerating capture devices", "error", err)
		return err
	}

	current := make(map[string]media.Device, len(devices))
	for _, dev := range devices {
		current[dev.ID] = dev
	}

	m.mu.Lock()
	var removed []media.Device
	for id, old := range m.lastDevices {
		if _, exists := current[id]; !exists {
			m.publish(ActionRemoved, old)
			m.logger.Info("Device removed", "device", old.Path, "name", old.Name, "id", id)
			delete(m.lastDevices, id)
			removed = append(removed, old)
		}
	}
	for _, dev := range devices {
		old, exists := m.lastDevices[dev.ID]
		switch {
		case !exists:
			m.publish(ActionAdded, dev)
			m.logger.Info("Device added", "device", dev.Path, "name", dev.Name, "id", dev.ID)
		case old != dev:
			m.publish(ActionChanged, dev)
			m.logger.Info("Device changed", "device", dev.Path, "name", dev.Name, "id", dev.ID)
		default:
			continue
		}
		m.lastDevices[dev.ID] = dev
	}
	m.mu.Unlock()

	if m.opts.OnRemoved != nil {
		for _, dev := range removed {
			m.opts.OnRemoved(dev)
		}
	}
	return nil
}

func (m *Monitor) publish(action string, dev media.Device) {
	m.opts.EventBus.Publish(events.DeviceDiscoveryEvent{
		DeviceID:   dev.ID,
		DeviceName: dev.Name,
		DevicePath: dev.Path,
		Action:     action,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// Change is one kernel notification that the device set may have changed.
type Change struct {
	Added bool
	Node  string
}

// Run rescans on every change until ctx is done or changes is closed.
// Additions wait SettleDelay first.
func (m *Monitor) Run(ctx context.Context, changes <-chan Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			m.logger.Debug("Device node changed", "node", ch.Node, "added", ch.Added)
			if ch.Added {
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.opts.SettleDelay):
				}
			}
			_ = m.Scan()
		}
	}
}
