package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultHistorySize = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex         sync.RWMutex
	globalConfig  Config
	isInitialized bool
	globalLevel   = &slog.LevelVar{}
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
	history       *History
	entryCallback EntryCallback
)

// Initialize sets up the logging system. Loggers handed out earlier keep
// working and pick up the new levels.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true
	if history == nil {
		history = NewHistory(defaultHistorySize)
	}

	applyLevelsLocked()

	for module, levelVar := range moduleLevels {
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}
	slog.SetDefault(slog.New(createHandler(config.Format, globalLevel)))
}

// Reconfigure updates the global and per-module levels in place. The output
// format is fixed at Initialize.
func Reconfigure(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig.Level = config.Level
	globalConfig.Modules = config.Modules
	applyLevelsLocked()
}

func applyLevelsLocked() {
	global := levelOrDefault(globalConfig.Level, slog.LevelInfo)
	globalLevel.Set(global)
	for module, levelVar := range moduleLevels {
		levelVar.Set(levelOrDefault(globalConfig.Modules[module], global))
	}
}

// Levels returns the effective level of every module logger created so far.
func Levels() map[string]string {
	mutex.RLock()
	defer mutex.RUnlock()

	out := make(map[string]string, len(moduleLevels)+1)
	out["default"] = levelToString(globalLevel.Level())
	for module, levelVar := range moduleLevels {
		out[module] = levelToString(levelVar.Level())
	}
	return out
}

// GetHistory returns the in-memory log history, or nil before Initialize.
func GetHistory() *History {
	mutex.RLock()
	defer mutex.RUnlock()
	return history
}

// SetEntryCallback registers a function called for every recorded entry.
// The event bus hooks in here to stream logs.
func SetEntryCallback(callback EntryCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	entryCallback = callback
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(levelOrDefault(globalConfig.Modules[module], levelOrDefault(globalConfig.Level, slog.LevelInfo)))
		format = globalConfig.Format
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = levelVar
	return logger
}

// createHandler builds the handler chain: stdout when something is attached
// to it, the journal when running under systemd, and the history buffer.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, newHistoryHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable reports whether stdout goes to a terminal, pipe, socket
// or regular file rather than /dev/null.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOrDefault(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}

func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
