//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"
)

// layout locates the kernel's video4linux class directory and the device
// nodes.
type layout struct {
	class string
	dev   string
	byID  string
}

var systemLayout = layout{
	class: "/sys/class/video4linux",
	dev:   "/dev",
	byID:  "/dev/v4l/by-id",
}

// FindDevices lists the video capture nodes. Metadata and output nodes of
// the same hardware are left out.
func FindDevices() ([]DeviceInfo, error) {
	return systemLayout.find(queryCapability)
}

func queryCapability(node string) (v4l2Capability, error) {
	var c v4l2Capability
	h, err := openDevice(node)
	if err != nil {
		return c, err
	}
	defer h.Close()
	err = h.ioctl(vidiocQuerycap, unsafe.Pointer(&c))
	return c, err
}

// effective returns the capabilities of this node rather than of the whole
// physical device, when the driver reports them.
func (c *v4l2Capability) effective() uint32 {
	if c.capabilities&v4l2CapDeviceCaps != 0 {
		return c.deviceCaps
	}
	return c.capabilities
}

func (l layout) find(query func(node string) (v4l2Capability, error)) ([]DeviceInfo, error) {
	entries, err := os.ReadDir(l.class)
	if os.IsNotExist(err) {
		return []DeviceInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.class, err)
	}

	logger := slog.With("component", "v4l2")
	devices := []DeviceInfo{}
	for _, entry := range entries {
		name := entry.Name()
		node := filepath.Join(l.dev, name)

		c, err := query(node)
		if err != nil {
			logger.Debug("Skipping video node", "path", node, "error", err)
			continue
		}
		caps := c.effective()
		if caps&v4l2CapVideoCapture == 0 {
			continue
		}

		index := readSysfsInt(filepath.Join(l.class, name, "index"))
		id := l.stableID(name, index)
		if id == "" {
			id = fallbackID(cstr(c.busInfo[:]), index)
		}

		devices = append(devices, DeviceInfo{
			DevicePath: node,
			DeviceName: cstr(c.card[:]),
			DeviceID:   id,
			Caps:       caps,
		})
	}
	return devices, nil
}

// stableID returns the udev by-id link naming node, which survives
// re-enumeration after replugging.
func (l layout) stableID(node string, index int) string {
	entries, err := os.ReadDir(l.byID)
	if err != nil {
		return ""
	}
	suffix := "-video-index" + strconv.Itoa(index)
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		target, err := os.Readlink(filepath.Join(l.byID, entry.Name()))
		if err == nil && filepath.Base(target) == node {
			return entry.Name()
		}
	}
	return ""
}

// fallbackID builds an ID in the by-id style from the bus address.
func fallbackID(busInfo string, index int) string {
	if strings.HasPrefix(busInfo, "usb-") {
		return fmt.Sprintf("%s-video-index%d", busInfo, index)
	}
	return fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
}

func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return v
}

// cstr converts a NUL-terminated kernel string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
