// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a module attribute:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{"graph": "debug"},
//	})
//	logger := logging.GetLogger("graph")
//	logger.Info("Graph running", "build_id", id)
//
// Records go to stdout when something is attached to it, to the systemd
// journal when journald is reachable, and always to an in-memory History
// that backs the log API and the log event stream.
//
// Module levels are held in slog.LevelVar values, so Reconfigure (driven by
// the config file watcher) changes them without recreating loggers.
//
// Under systemd:
//
//	journalctl -t videofx -f
//	journalctl -t videofx MODULE=graph
//
// TOML layout:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	graph = "debug"
//	api = "warn"
package logging
