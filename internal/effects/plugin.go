package effects

import (
	"fmt"

	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/interceptors"
)

// PluginName is the name the effects plugin is registered under.
const PluginName = "effects"

const effectGroup = "effect"

// Config is the [effects] configuration section.
type Config struct {
	Effect string `toml:"effect"`
}

// Apply switches inv to the effect named in cfg.
func Apply(inv *Invert, cfg Config) error {
	k, err := ParseKind(cfg.Effect)
	if err != nil {
		return err
	}
	if k == KindNone {
		inv.Disable()
		return nil
	}
	inv.SetEffect(k)
	return nil
}

// CommandID returns the command that selects k, for callers that switch
// effects through the host so the check state follows.
func CommandID(k Kind) string {
	return hostui.SiteOptions + "/" + k.String()
}

// Plugin exposes an Invert interceptor and its commands.
type Plugin struct {
	invert *Invert
}

// NewPlugin wraps inv. A nil inv creates a fresh interceptor.
func NewPlugin(inv *Invert) *Plugin {
	if inv == nil {
		inv = NewInvert()
	}
	return &Plugin{invert: inv}
}

// Name returns PluginName.
func (p *Plugin) Name() string { return PluginName }

// Invert returns the plugin's interceptor.
func (p *Plugin) Invert() *Invert { return p.invert }

// InitUI installs the exclusive "No Filter" and "Negate" commands.
func (p *Plugin) InitUI(host hostui.Host) error {
	negating := p.invert.Enabled() && p.invert.Effect() == KindNegate

	cmds := []hostui.Command{
		{
			Name:    KindNone.String(),
			Label:   "No Filter",
			Group:   effectGroup,
			Checked: !negating,
			Action: func(bool) error {
				p.invert.Disable()
				return nil
			},
		},
		{
			Name:    KindNegate.String(),
			Label:   "Negate",
			Group:   effectGroup,
			Checked: negating,
			Action: func(bool) error {
				p.invert.SetEffect(KindNegate)
				return nil
			},
		},
	}
	for _, cmd := range cmds {
		if err := host.AddCommand(hostui.SiteOptions, cmd); err != nil {
			return fmt.Errorf("effects: %w", err)
		}
	}
	return nil
}

// GetInterceptors returns the single Invert interceptor.
func (p *Plugin) GetInterceptors() []interceptors.Interceptor {
	return []interceptors.Interceptor{p.invert}
}
