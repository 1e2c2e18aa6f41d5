//go:build linux

package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/smazurov/videofx/pkg/linuxav/hotplug"
)

// Watch scans once, then follows video4linux hotplug events until ctx is
// done.
func (m *Monitor) Watch(ctx context.Context) error {
	if err := m.Scan(); err != nil {
		m.logger.Warn("Failed to get initial device list", "error", err)
	} else {
		m.logger.Info("Initialized with capture devices", "count", len(m.Known()))
	}

	mon, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return fmt.Errorf("failed to create hotplug monitor: %w", err)
	}

	raw := make(chan hotplug.Event, 16)
	changes := make(chan Change, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, changes)
	}()

	go func() {
		defer close(changes)
		for ev := range raw {
			if !ev.IsVideoNode() {
				continue
			}
			switch ev.Action {
			case hotplug.ActionAdd, hotplug.ActionRemove:
				select {
				case changes <- Change{Added: ev.Action == hotplug.ActionAdd, Node: ev.DeviceNode()}:
				case <-ctx.Done():
				}
			}
		}
	}()

	m.logger.Info("Hotplug monitoring started for capture devices")
	runErr := mon.Run(ctx, raw)
	<-done
	if closeErr := mon.Close(); closeErr != nil {
		m.logger.Debug("Closing hotplug monitor failed", "error", closeErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("hotplug monitor: %w", runErr)
	}
	m.logger.Info("Hotplug monitor stopped")
	return nil
}
