//go:build !linux

package devices

import "context"

// Watch scans once and waits for ctx. Hotplug notifications need netlink and
// are linux only.
func (m *Monitor) Watch(ctx context.Context) error {
	if err := m.Scan(); err != nil {
		return err
	}
	m.logger.Warn("Hotplug monitoring is only supported on linux")
	<-ctx.Done()
	return nil
}
