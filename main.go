package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/videofx/cmd"
	"github.com/smazurov/videofx/internal/api"
	"github.com/smazurov/videofx/internal/config"
	"github.com/smazurov/videofx/internal/console"
	"github.com/smazurov/videofx/internal/devices"
	"github.com/smazurov/videofx/internal/effects"
	"github.com/smazurov/videofx/internal/events"
	"github.com/smazurov/videofx/internal/filters"
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/graph"
	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/interceptors"
	"github.com/smazurov/videofx/internal/logging"
	"github.com/smazurov/videofx/internal/media"
	"github.com/smazurov/videofx/internal/media/synthetic"
	"github.com/smazurov/videofx/internal/metrics"
	"github.com/smazurov/videofx/internal/metrics/exporters"
	"github.com/smazurov/videofx/internal/plugins"
	"github.com/smazurov/videofx/internal/settings"
	"github.com/smazurov/videofx/internal/snapshot"
	"github.com/smazurov/videofx/internal/systemd"
	"github.com/smazurov/videofx/internal/version"
)

const graphEventInterval = 100 * time.Millisecond

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Capture settings
	CaptureDevice   string `help:"Device ID to bind at startup, defaults to the last used device" toml:"capture.device" env:"CAPTURE_DEVICE"`
	CaptureSimulate bool   `help:"Use synthetic capture devices instead of V4L2" default:"false" toml:"capture.simulate" env:"CAPTURE_SIMULATE"`
	CaptureSink     string `help:"GStreamer element used for the preview window" default:"autovideosink" toml:"capture.preview_sink" env:"CAPTURE_PREVIEW_SINK"`
	CaptureSettings string `help:"File remembering the last device and format" default:"videofx-settings.toml" toml:"capture.settings_file" env:"CAPTURE_SETTINGS_FILE"`

	// Plugins settings
	PluginsManifest string `help:"Plugin manifest selecting and ordering plugins" default:"plugins.toml" toml:"plugins.manifest" env:"PLUGINS_MANIFEST"`

	// Features settings
	FeaturesConsole bool `help:"Read console commands from stdin" default:"true" toml:"features.console" env:"FEATURES_CONSOLE"`
	FeaturesMetrics bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"features.metrics" env:"FEATURES_METRICS"`
	FeaturesHotplug bool `help:"Watch for capture devices being plugged and unplugged" default:"true" toml:"features.hotplug" env:"FEATURES_HOTPLUG"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingGraph   string `help:"Capture graph logging level" default:"info" toml:"logging.graph" env:"LOGGING_GRAPH"`
	LoggingFilters string `help:"Filter chain logging level" default:"info" toml:"logging.filters" env:"LOGGING_FILTERS"`
	LoggingMedia   string `help:"Media engine logging level" default:"info" toml:"logging.media" env:"LOGGING_MEDIA"`
	LoggingDevices string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConsole string `help:"Console logging level" default:"warn" toml:"logging.console" env:"LOGGING_CONSOLE"`
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"graph":   opts.LoggingGraph,
				"filters": opts.LoggingFilters,
				"media":   opts.LoggingMedia,
				"devices": opts.LoggingDevices,
				"api":     opts.LoggingAPI,
				"console": opts.LoggingConsole,
			},
		})
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetEntryCallback(func(e logging.Entry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        e.Seq,
				Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		})

		// Plugins register interceptors before the chain configures stages
		registry := interceptors.NewRegistry()
		frameObserver := metrics.NewFrameObserver()
		chain := filters.NewChain(registry, frameObserver, logging.GetLogger("filters"))
		if err := chain.RegisterStageType(filters.Preprocessing); err != nil {
			logger.Error("Failed to register filter stage", "error", err)
			os.Exit(1)
		}

		live, liveErr := config.LoadLive(opts.Config)
		if liveErr != nil && !errors.Is(liveErr, os.ErrNotExist) {
			logger.Warn("Ignoring live config sections", "error", liveErr)
		}
		effectsPlugin := effects.NewPlugin(nil)
		if err := effects.Apply(effectsPlugin.Invert(), live.Effects); err != nil {
			logger.Warn("Invalid [effects] section", "error", err)
		}

		loader := plugins.NewStaticLoader(opts.PluginsManifest)
		snapshotPlugin := snapshot.NewPlugin(nil)
		if err := loader.RegisterInstances(effectsPlugin, snapshotPlugin); err != nil {
			logger.Error("Failed to register plugins", "error", err)
			os.Exit(1)
		}

		menu := hostui.NewMenu(eventBus, logging.GetLogger("hostui"))
		loaded, err := plugins.LoadAll(loader, menu, registry, logger)
		if err != nil {
			logger.Error("Failed to load plugins", "error", err)
			os.Exit(1)
		}

		// The console owns stdin; the native chooser asks it once it exists.
		var con *console.Console
		chooser := func(current frame.Format, caps []frame.Format) (frame.Format, bool, error) {
			if con == nil {
				return current, false, nil
			}
			return con.Chooser()(current, caps)
		}

		engine, err := newEngine(opts, chooser)
		if err != nil {
			logger.Error("Failed to initialize media engine", "error", err)
			os.Exit(1)
		}

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		store := settings.NewTOML(opts.CaptureSettings)
		controller := graph.NewController(graph.Options{
			Engine:   engine,
			Chain:    chain,
			Settings: store,
			Notifier: graph.NotifierFunc(func(err error) {
				logger.Error("Capture setup failed", "error", err)
				notifier.Status("capture setup failed: %v", err)
			}),
			EventBus: eventBus,
			Logger:   logging.GetLogger("graph"),
		})

		eventBus.Subscribe(func(e events.DeviceSelectedEvent) {
			if err := store.SaveDevice(e.DeviceID); err != nil {
				logger.Warn("Failed to remember device", "error", err)
			}
			notifier.Status("capturing %s", e.DeviceName)
		})

		// Live config: logging levels and the selected effect
		watcher := config.NewConfigWatcher(opts.Config, config.LoadLive, logging.GetLogger("config"))
		watcher.OnReload(func(l config.Live) {
			logging.Reconfigure(l.Logging)
			kind, err := effects.ParseKind(l.Effects.Effect)
			if err != nil {
				return
			}
			if _, err := menu.Invoke(effects.CommandID(kind)); err != nil {
				logger.Warn("Failed to apply effect from config", "effect", kind, "error", err)
			}
		})

		rate := exporters.NewRateExporter(eventBus, frameObserver)

		monitor := devices.NewMonitor(devices.Options{
			Lister:   engine,
			EventBus: eventBus,
			OnRemoved: func(removed media.Device) {
				if bound, ok := controller.Device(); ok && bound.ID == removed.ID {
					logger.Warn("Bound capture device removed", "device", removed.ID)
					if err := controller.ResetDevice(); err != nil {
						logger.Error("Failed to reset device", "error", err)
					}
				}
			},
			Logger: logging.GetLogger("devices"),
		})

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Capture:      controller,
			Devices:      engine,
			Commands:     menu,
			Rate:         rate,
			EventBus:     eventBus,
		}
		// Registered after effects, so snapshots show the processed frame.
		for _, p := range loaded {
			if p.Name() == snapshot.PluginName {
				apiOpts.Snapshots = snapshotPlugin.Grabber()
			}
		}
		if opts.FeaturesMetrics {
			apiOpts.MetricsHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		if opts.FeaturesConsole && stdinAvailable() {
			con = console.New(console.Options{
				In:       os.Stdin,
				Out:      os.Stdout,
				Capture:  controller,
				Devices:  engine,
				Commands: menu,
				EventBus: eventBus,
				Terminal: console.IsTerminal(os.Stdin),
				Logger:   logging.GetLogger("console"),
			})
		}

		ctx, cancel := context.WithCancel(context.Background())
		var shutdownOnce sync.Once
		shutdown := func() {
			shutdownOnce.Do(func() {
				logger.Info("Shutting down")
				notifier.Stopping()
				cancel()
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
				rate.Stop()
				if stopErr := controller.Teardown(); stopErr != nil {
					logger.Error("Error releasing capture graph", "error", stopErr)
				}
			})
		}

		hooks.OnStart(func() {
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config hot reload disabled", "error", startErr)
			}
			rate.Start(ctx)
			go controller.Watch(ctx, graphEventInterval)
			go notifier.Watchdog(ctx)

			if opts.FeaturesHotplug {
				go func() {
					if watchErr := monitor.Watch(ctx); watchErr != nil && !errors.Is(watchErr, context.Canceled) {
						logger.Warn("Device monitor stopped", "error", watchErr)
					}
				}()
			}

			bindStartupDevice(opts.CaptureDevice, store, engine, controller, logger)

			if con != nil {
				go func() {
					runErr := con.Run(ctx)
					if errors.Is(runErr, console.ErrQuit) {
						shutdown()
						return
					}
					if runErr != nil && !errors.Is(runErr, context.Canceled) {
						logger.Warn("Console stopped", "error", runErr)
					}
				}()
			}

			notifier.Ready()
			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				shutdown()
				os.Exit(1)
			}
		})

		hooks.OnStop(shutdown)
	})

	root := cli.Root()
	root.Use = "videofx"
	root.Short = "Live video capture with in-place effects"
	root.AddCommand(cmd.CreateDevicesCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(c *cobra.Command, _ []string) {
			c.Println(version.String())
		},
	})

	// Run the CLI
	cli.Run()
}

func newEngine(opts *Options, chooser func(frame.Format, []frame.Format) (frame.Format, bool, error)) (media.Engine, error) {
	if opts.CaptureSimulate {
		return synthetic.New(synthetic.Options{
			FrameInterval: synthetic.DefaultFrameInterval,
			Chooser:       chooser,
			Logger:        logging.GetLogger("media"),
		}), nil
	}
	return newNativeEngine(opts.CaptureSink, chooser)
}

// bindStartupDevice selects the configured device, or the last used one.
func bindStartupDevice(id string, store *settings.Store, lister devices.Lister, controller *graph.Controller, logger *slog.Logger) {
	if id == "" {
		remembered, err := store.Device()
		if err != nil {
			logger.Warn("Failed to read remembered device", "error", err)
		}
		id = remembered
	}
	if id == "" {
		return
	}

	devs, err := lister.Devices()
	if err != nil {
		logger.Warn("Failed to list capture devices", "error", err)
		return
	}
	for _, d := range devs {
		if d.ID == id {
			if err := controller.SelectDevice(d); err != nil {
				logger.Warn("Failed to bind startup device", "device", id, "error", err)
			}
			return
		}
	}
	logger.Info("Startup device not present", "device", id)
}

func stdinAvailable() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0 || fi.Mode()&os.ModeNamedPipe != 0
}
