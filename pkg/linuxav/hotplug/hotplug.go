//go:build linux

// Package hotplug follows kernel device events on the kobject uevent netlink
// socket, without cgo or libudev.
//
// Capture devices appear and disappear as video4linux "add" and "remove"
// events whose DEVNAME is the videoN node.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Uevent actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystem names.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemUSB         = "usb"
)

// kernelGroup is the multicast group the kernel broadcasts uevents on.
// Group 2 carries the libudev re-broadcasts, which we do not read.
const kernelGroup = 1

// pollInterval bounds how long Run waits before checking its context.
const pollInterval = 500 // ms

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string // sysfs object path from the message header
	Subsystem string
	DevName   string // DEVNAME, relative to /dev
	Seq       uint64 // SEQNUM, 0 when absent
	Env       map[string]string
}

// DeviceNode returns the /dev path of the event's device node, or "" when
// the event carries no DEVNAME.
func (e Event) DeviceNode() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/dev/") {
		return e.DevName
	}
	return path.Join("/dev", e.DevName)
}

// IsVideoNode reports whether the event concerns a /dev/videoN node.
func (e Event) IsVideoNode() bool {
	return e.Subsystem == SubsystemVideo4Linux && strings.HasPrefix(path.Base(e.DevName), "video")
}

// Monitor reads uevents from a netlink socket. The subsystem filter is fixed
// at construction, so a Monitor needs no locking.
type Monitor struct {
	fd         int
	subsystems map[string]bool
}

// NewMonitor opens the uevent socket. Events are limited to the given
// subsystems; with none, every event passes.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("open uevent socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind uevent socket: %w", err)
	}
	return newMonitor(fd, subsystems), nil
}

func newMonitor(fd int, subsystems []string) *Monitor {
	m := &Monitor{fd: fd, subsystems: make(map[string]bool, len(subsystems))}
	for _, s := range subsystems {
		m.subsystems[s] = true
	}
	return m
}

// Subsystems returns the subsystem filter, empty when all events pass.
func (m *Monitor) Subsystems() []string {
	out := make([]string, 0, len(m.subsystems))
	for s := range m.subsystems {
		out = append(out, s)
	}
	return out
}

func (m *Monitor) accepts(subsystem string) bool {
	return len(m.subsystems) == 0 || m.subsystems[subsystem]
}

// Close releases the socket. Call it after Run returned.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Run delivers matching events until ctx is done or the socket fails. The
// events channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 16*1024)
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollInterval)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll uevent socket: %w", err)
		}
		if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		size, err := unix.Read(m.fd, buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.ENOBUFS) {
			// The kernel dropped events; callers rescan on the next one.
			continue
		}
		if err != nil {
			return fmt.Errorf("read uevent socket: %w", err)
		}

		ev, ok := ParseUEvent(buf[:size])
		if !ok || !m.accepts(ev.Subsystem) {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ParseUEvent decodes a kernel uevent message, "ACTION@KOBJ" followed by
// NUL-separated KEY=VALUE pairs. Messages in the libudev format are
// rejected.
func ParseUEvent(data []byte) (Event, bool) {
	header, rest, _ := bytes.Cut(data, []byte{0})
	action, kobj, found := strings.Cut(string(header), "@")
	if !found || action == "" || kobj == "" || bytes.HasPrefix(header, []byte("libudev")) {
		return Event{}, false
	}

	ev := Event{Action: action, KObj: kobj, Env: make(map[string]string)}
	for len(rest) > 0 {
		var field []byte
		field, rest, _ = bytes.Cut(rest, []byte{0})
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		case "SEQNUM":
			ev.Seq, _ = strconv.ParseUint(value, 10, 64)
		}
	}
	return ev, true
}
