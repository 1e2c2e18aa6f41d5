package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func resetState() {
	mutex.Lock()
	defer mutex.Unlock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	history = nil
	entryCallback = nil
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"graph": "debug",
			"api":   "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"graph", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("graph")
	handler := before.Handler()
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"graph": "debug"}})

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("early logger should pick up the module level after Initialize")
	}
}

func TestReconfigureKeepsLoggers(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	logger := GetLogger("effects")
	Reconfigure(Config{Level: "error", Modules: map[string]string{"effects": "debug"}})

	if GetLogger("effects") != logger {
		t.Error("Reconfigure should not replace loggers")
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected effects at debug after Reconfigure")
	}
	if slog.Default().Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected default logger at error after Reconfigure")
	}

	levels := Levels()
	if levels["effects"] != "debug" || levels["default"] != "error" {
		t.Errorf("unexpected levels: %v", levels)
	}
}

func TestHistoryRecordsEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", Format: "text"})

	var seen []Entry
	SetEntryCallback(func(e Entry) { seen = append(seen, e) })

	logger := GetLogger("graph").With("build_id", "b1")
	logger.WithGroup("format").Info("Format negotiated", "width", 640, "err", errors.New("none"))

	entries := GetHistory().Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Module != "graph" || e.Message != "Format negotiated" || e.Level != "info" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Attributes["build_id"] != "b1" {
		t.Errorf("expected build_id attribute, got %v", e.Attributes)
	}
	if e.Attributes["format.width"] != int64(640) {
		t.Errorf("expected grouped width attribute, got %v", e.Attributes)
	}
	if e.Attributes["format.err"] != "none" {
		t.Errorf("expected error flattened to string, got %v", e.Attributes["format.err"])
	}
	if len(seen) != 1 || seen[0].Seq != e.Seq {
		t.Errorf("callback did not see the entry: %+v", seen)
	}
}

func TestHistoryWraps(t *testing.T) {
	h := NewHistory(3)
	for i := range 5 {
		h.Append(Entry{Message: string(rune('a' + i))})
	}

	entries := h.Entries()
	if len(entries) != 3 || h.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	got := entries[0].Message + entries[1].Message + entries[2].Message
	if got != "cde" {
		t.Errorf("expected cde, got %s", got)
	}
	if entries[2].Seq != 5 {
		t.Errorf("expected seq 5, got %d", entries[2].Seq)
	}

	since := h.Since(3)
	if len(since) != 2 || since[0].Message != "d" {
		t.Errorf("expected [d e] since seq 3, got %+v", since)
	}
	if h.Since(5) != nil {
		t.Error("expected nothing after the last seq")
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}
	if !strings.Contains(output, "module=test") {
		t.Errorf("expected attrs to reach every handler. Output: %s", output)
	}
}

func TestAddJournalField(t *testing.T) {
	fields := map[string]string{}
	addJournalField(fields, slog.Int("width", 640), nil)
	addJournalField(fields, slog.Group("format", slog.String("native", "YUYV")), []string{"graph"})
	addJournalField(fields, slog.Bool("bound", true), nil)

	if fields["WIDTH"] != "640" {
		t.Errorf("expected WIDTH=640, got %q", fields["WIDTH"])
	}
	if fields["GRAPH_FORMAT_NATIVE"] != "YUYV" {
		t.Errorf("expected GRAPH_FORMAT_NATIVE=YUYV, got %v", fields)
	}
	if fields["BOUND"] != "true" {
		t.Errorf("expected BOUND=true, got %q", fields["BOUND"])
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
