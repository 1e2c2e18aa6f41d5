// Package console is the line-oriented control host on stdin. It drives the
// capture controller and plugin commands and answers interactive format
// selection while one of its own commands is running.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"

	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/graph"
	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/logging"
	"github.com/smazurov/videofx/internal/media"
)

// ErrQuit is returned by Run when the user asked to quit.
var ErrQuit = errors.New("quit requested")

// Capture is the part of the graph controller the console drives.
type Capture interface {
	Snapshot() graph.Snapshot
	Capabilities() ([]frame.Format, error)
	SelectDevice(dev media.Device) error
	ResetDevice() error
	SetPreviewActive(active bool) error
	ChangeFormat() error
	Resize(g frame.Geometry) error
}

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	Devices() ([]media.Device, error)
}

// Commands lists and invokes plugin commands.
type Commands interface {
	Sites() []string
	Commands(site string) []hostui.CommandInfo
	Invoke(id string) (hostui.CommandInfo, error)
}

// Options configures a Console.
type Options struct {
	In       io.Reader
	Out      io.Writer
	Capture  Capture
	Devices  DeviceLister
	Commands Commands
	EventBus *events.Bus
	// Terminal prints a prompt before every command.
	Terminal bool
	Logger   *slog.Logger
}

// Console reads and runs commands.
type Console struct {
	opts    Options
	scanner *bufio.Scanner
	logger  *slog.Logger

	outMu sync.Mutex
	// driving is set while a console command runs; format selection only
	// reads input then.
	driving  atomic.Bool
	watching atomic.Bool
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// New creates a console.
func New(opts Options) *Console {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("console")
	}
	return &Console{
		opts:    opts,
		scanner: bufio.NewScanner(opts.In),
		logger:  opts.Logger,
	}
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.opts.Out, format, args...)
}

// Run reads commands until input ends, ctx is done or the user quits.
// Command failures are printed and do not stop the loop.
func (c *Console) Run(ctx context.Context) error {
	if c.opts.EventBus != nil {
		unsub := c.opts.EventBus.Subscribe(func(e events.FrameRateEvent) {
			if c.watching.Load() {
				c.printf("fps %.2f (%d frames)\n", e.FPS, e.Frames)
			}
		})
		defer unsub()
	}

	// The reader scans one line per request so that Chooser can read the
	// scanner while a command runs.
	lines := make(chan string)
	readErr := make(chan error, 1)
	next := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		for {
			select {
			case <-done:
				return
			case <-next:
			}
			if !c.scanner.Scan() {
				readErr <- c.scanner.Err()
				return
			}
			select {
			case lines <- c.scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		if c.opts.Terminal {
			c.printf("> ")
		}
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			if err := c.Execute(line); err != nil {
				if errors.Is(err, ErrQuit) {
					return ErrQuit
				}
				c.printf("error: %v\n", err)
			}
		}
	}
}

// Execute runs one command line.
func (c *Console) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	c.driving.Store(true)
	defer c.driving.Store(false)

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	c.logger.Debug("Console command", "command", cmd, "args", args)

	switch cmd {
	case "help", "?":
		c.help()
		return nil
	case "state", "status":
		c.state()
		return nil
	case "devices":
		return c.devices()
	case "select":
		return c.selectDevice(args)
	case "reset":
		return c.opts.Capture.ResetDevice()
	case "pause":
		return c.opts.Capture.SetPreviewActive(false)
	case "resume":
		return c.opts.Capture.SetPreviewActive(true)
	case "formats":
		return c.formats()
	case "format":
		return c.opts.Capture.ChangeFormat()
	case "resize":
		return c.resize(args)
	case "commands":
		c.commands()
		return nil
	case "run":
		return c.run(args)
	case "watch":
		on := !c.watching.Load()
		c.watching.Store(on)
		c.printf("frame rate reporting %s\n", onOff(on))
		return nil
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (c *Console) help() {
	c.printf(`commands:
  state              show capture state
  devices            list capture devices
  select N|ID        bind device N or ID
  reset              unbind the device
  pause | resume     stop or restart the preview
  formats            list source formats
  format             choose a source format
  resize WxH[+X+Y]   set the preview geometry
  commands           list plugin commands
  run ID             invoke a plugin command
  watch              toggle frame rate reporting
  quit
`)
}

func (c *Console) state() {
	snap := c.opts.Capture.Snapshot()
	c.printf("state:  %s\n", snap.State)
	if snap.Bound {
		c.printf("device: %s (%s)\n", snap.Device.Name, snap.Device.ID)
	}
	if !snap.Format.IsZero() {
		c.printf("format: %s\n", snap.Format)
	}
	if snap.BuildID != "" {
		c.printf("build:  %s %v\n", snap.BuildID, snap.Stages)
	}
}

func (c *Console) devices() error {
	devs, err := c.opts.Devices.Devices()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		c.printf("no capture devices\n")
		return nil
	}
	snap := c.opts.Capture.Snapshot()
	for i, d := range devs {
		marker := " "
		if snap.Bound && snap.Device.ID == d.ID {
			marker = "*"
		}
		c.printf("%s [%d] %s  %s  %s\n", marker, i, d.Name, d.Path, d.ID)
	}
	return nil
}

func (c *Console) selectDevice(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: select N|ID")
	}
	devs, err := c.opts.Devices.Devices()
	if err != nil {
		return err
	}
	dev, ok := pickDevice(devs, args[0])
	if !ok {
		return fmt.Errorf("no device %q", args[0])
	}
	if err := c.opts.Capture.SelectDevice(dev); err != nil {
		return err
	}
	c.state()
	return nil
}

// pickDevice resolves an enumeration index or a device ID.
func pickDevice(devs []media.Device, arg string) (media.Device, bool) {
	if i, err := strconv.Atoi(arg); err == nil {
		if i >= 0 && i < len(devs) {
			return devs[i], true
		}
		return media.Device{}, false
	}
	for _, d := range devs {
		if d.ID == arg {
			return d, true
		}
	}
	return media.Device{}, false
}

func (c *Console) formats() error {
	caps, err := c.opts.Capture.Capabilities()
	if err != nil {
		return err
	}
	current := c.opts.Capture.Snapshot().Format
	c.printFormats(current, caps)
	return nil
}

func (c *Console) printFormats(current frame.Format, caps []frame.Format) {
	for i, f := range caps {
		marker := " "
		if f == current {
			marker = "*"
		}
		c.printf("%s [%d] %s\n", marker, i, f)
	}
}

func (c *Console) resize(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: resize WxH[+X+Y]")
	}
	geom, err := ParseGeometry(args[0])
	if err != nil {
		return err
	}
	return c.opts.Capture.Resize(geom)
}

// ParseGeometry parses WxH or WxH+X+Y.
func ParseGeometry(s string) (frame.Geometry, error) {
	var g frame.Geometry
	size, offset, hasOffset := strings.Cut(s, "+")
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return g, fmt.Errorf("invalid geometry %q", s)
	}
	var err error
	if g.Width, err = strconv.Atoi(w); err != nil || g.Width <= 0 {
		return g, fmt.Errorf("invalid width in %q", s)
	}
	if g.Height, err = strconv.Atoi(h); err != nil || g.Height <= 0 {
		return g, fmt.Errorf("invalid height in %q", s)
	}
	if hasOffset {
		x, y, ok := strings.Cut(offset, "+")
		if !ok {
			return g, fmt.Errorf("invalid offset in %q", s)
		}
		if g.X, err = strconv.Atoi(x); err != nil {
			return g, fmt.Errorf("invalid x in %q", s)
		}
		if g.Y, err = strconv.Atoi(y); err != nil {
			return g, fmt.Errorf("invalid y in %q", s)
		}
	}
	return g, nil
}

func (c *Console) commands() {
	sites := c.opts.Commands.Sites()
	sort.Strings(sites)
	for _, site := range sites {
		for _, info := range c.opts.Commands.Commands(site) {
			check := ""
			if info.Checkable {
				check = "[ ] "
				if info.Checked {
					check = "[x] "
				}
			}
			c.printf("  %s%-20s %s\n", check, info.ID, info.Label)
		}
	}
}

func (c *Console) run(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: run ID")
	}
	info, err := c.opts.Commands.Invoke(args[0])
	if err != nil {
		return err
	}
	if info.Checkable {
		c.printf("%s %s\n", info.ID, onOff(info.Checked))
	}
	return nil
}

// Chooser answers interactive format selection from console input. Outside
// a console command it keeps the current format, since the read loop owns
// the input then.
func (c *Console) Chooser() func(current frame.Format, caps []frame.Format) (frame.Format, bool, error) {
	return func(current frame.Format, caps []frame.Format) (frame.Format, bool, error) {
		if !c.driving.Load() || len(caps) == 0 {
			return current, false, nil
		}
		c.printFormats(current, caps)
		for attempt := 0; attempt < 3; attempt++ {
			c.printf("format [0-%d, empty keeps current]: ", len(caps)-1)
			if !c.scanner.Scan() {
				return current, false, c.scanner.Err()
			}
			answer := strings.TrimSpace(c.scanner.Text())
			if answer == "" {
				return current, false, nil
			}
			i, err := strconv.Atoi(answer)
			if err == nil && i >= 0 && i < len(caps) {
				return caps[i], true, nil
			}
			c.printf("invalid choice %q\n", answer)
		}
		return current, false, nil
	}
}
