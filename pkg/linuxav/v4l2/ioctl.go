//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// handle is an open device node.
type handle struct {
	fd   int
	path string
}

func openDevice(path string) (*handle, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &handle{fd: fd, path: path}, nil
}

func (h *handle) Close() error {
	return unix.Close(h.fd)
}

func (h *handle) ioctl(req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(h.fd), uintptr(req), uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

// enumerate issues req with index 0, 1, ... until the driver reports the end
// of the list with EINVAL. prepare fills the request for an index and returns
// it; visit sees each filled request and may stop early.
func (h *handle) enumerate(req uint, prepare func(i uint32) unsafe.Pointer, visit func() (more bool)) error {
	for i := uint32(0); ; i++ {
		if err := h.ioctl(req, prepare(i)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				return nil
			}
			return fmt.Errorf("%s: enumerate entry %d: %w", h.path, i, err)
		}
		if !visit() {
			return nil
		}
	}
}
