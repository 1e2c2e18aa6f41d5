// Package hostui is the command surface plugins extend. Plugins add command
// items at named sites; the HTTP API and the interactive console list and
// invoke them.
package hostui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/videofx/internal/events"
)

// Host errors.
var (
	ErrDuplicateCommand = errors.New("command already registered")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidCommand   = errors.New("invalid command")
)

// Known extension sites.
const (
	SiteOptions = "options"
)

// Command is one item a plugin installs.
type Command struct {
	Name  string
	Label string
	// Group makes commands at one site mutually exclusive: invoking one
	// checks it and clears the others of the group.
	Group string
	// Checkable commands without a group toggle on every invocation.
	Checkable bool
	Checked   bool
	// Action receives the check state the command will have after a
	// successful invocation.
	Action func(checked bool) error
}

// Host is the extension point handed to plugins.
type Host interface {
	AddCommand(site string, cmd Command) error
}

// CommandInfo describes a registered command.
type CommandInfo struct {
	ID        string `json:"id" example:"options/negate" doc:"Command identifier, site/name"`
	Site      string `json:"site" example:"options" doc:"Extension site"`
	Name      string `json:"name" example:"negate" doc:"Command name within the site"`
	Label     string `json:"label" example:"Negate" doc:"Display label"`
	Group     string `json:"group,omitempty" example:"effect" doc:"Exclusive group"`
	Checkable bool   `json:"checkable" example:"true" doc:"Whether the command has a check state"`
	Checked   bool   `json:"checked" example:"false" doc:"Current check state"`
}

type entry struct {
	site string
	cmd  Command
}

func (e *entry) info() CommandInfo {
	return CommandInfo{
		ID:        commandID(e.site, e.cmd.Name),
		Site:      e.site,
		Name:      e.cmd.Name,
		Label:     e.cmd.Label,
		Group:     e.cmd.Group,
		Checkable: e.cmd.Checkable || e.cmd.Group != "",
		Checked:   e.cmd.Checked,
	}
}

// Menu is the in-process Host implementation.
type Menu struct {
	mu       sync.Mutex
	sites    []string
	bySite   map[string][]*entry
	byID     map[string]*entry
	eventBus *events.Bus
	logger   *slog.Logger
}

// NewMenu creates an empty menu. eventBus may be nil.
func NewMenu(eventBus *events.Bus, logger *slog.Logger) *Menu {
	if logger == nil {
		logger = slog.Default()
	}
	return &Menu{
		bySite:   make(map[string][]*entry),
		byID:     make(map[string]*entry),
		eventBus: eventBus,
		logger:   logger,
	}
}

func commandID(site, name string) string {
	return site + "/" + name
}

// AddCommand implements Host.
func (m *Menu) AddCommand(site string, cmd Command) error {
	if site == "" || cmd.Name == "" || strings.Contains(cmd.Name, "/") {
		return fmt.Errorf("%w: site %q name %q", ErrInvalidCommand, site, cmd.Name)
	}
	if cmd.Action == nil {
		return fmt.Errorf("%w: %s has no action", ErrInvalidCommand, commandID(site, cmd.Name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := commandID(site, cmd.Name)
	if _, exists := m.byID[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, id)
	}
	if _, known := m.bySite[site]; !known {
		m.sites = append(m.sites, site)
	}
	e := &entry{site: site, cmd: cmd}
	m.bySite[site] = append(m.bySite[site], e)
	m.byID[id] = e
	m.logger.Debug("Command added", "id", id, "label", cmd.Label)
	return nil
}

// Sites returns the sites that have commands, in first-use order.
func (m *Menu) Sites() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sites))
	copy(out, m.sites)
	return out
}

// Commands lists the commands of a site in registration order. An empty
// site lists every command.
func (m *Menu) Commands(site string) []CommandInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CommandInfo
	for _, s := range m.sites {
		if site != "" && s != site {
			continue
		}
		for _, e := range m.bySite[s] {
			out = append(out, e.info())
		}
	}
	return out
}

// Invoke runs a command by ID and returns its updated description. The check
// state only changes when the action succeeds.
func (m *Menu) Invoke(id string) (CommandInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byID[id]
	if !ok {
		return CommandInfo{}, fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}

	checked := false
	switch {
	case e.cmd.Group != "":
		checked = true
	case e.cmd.Checkable:
		checked = !e.cmd.Checked
	}

	if err := e.cmd.Action(checked); err != nil {
		return e.info(), fmt.Errorf("command %s: %w", id, err)
	}

	if e.cmd.Group != "" {
		for _, other := range m.bySite[e.site] {
			if other.cmd.Group == e.cmd.Group {
				other.cmd.Checked = false
			}
		}
	}
	e.cmd.Checked = checked

	m.logger.Info("Command invoked", "id", id, "checked", checked)
	m.eventBus.Publish(events.CommandInvokedEvent{
		CommandID: id,
		Checked:   checked,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return e.info(), nil
}
