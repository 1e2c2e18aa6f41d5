package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is one recorded log line.
type Entry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EntryCallback is called for each recorded entry.
type EntryCallback func(entry Entry)

// History keeps the most recent log entries in a fixed-size ring.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
	seq     uint64
}

// NewHistory creates a ring holding size entries.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{entries: make([]Entry, size)}
}

// Append stores entry, overwriting the oldest one when full, and returns it
// with its sequence number set.
func (h *History) Append(entry Entry) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	entry.Seq = h.seq
	h.entries[h.head] = entry
	h.head = (h.head + 1) % len(h.entries)
	if h.count < len(h.entries) {
		h.count++
	}
	return entry
}

// Entries returns the stored entries oldest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, 0, h.count)
	start := (h.head - h.count + len(h.entries)) % len(h.entries)
	for i := range h.count {
		out = append(out, h.entries[(start+i)%len(h.entries)])
	}
	return out
}

// Since returns the stored entries with a sequence number above seq.
func (h *History) Since(seq uint64) []Entry {
	all := h.Entries()
	for i, e := range all {
		if e.Seq > seq {
			return all[i:]
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// historyHandler records into the package history. It looks the history up
// on every record so loggers created before Initialize still feed it.
type historyHandler struct {
	level  slog.Leveler
	attrs  []groupedAttr
	groups []string
}

// groupedAttr remembers the groups open when an attribute was bound.
type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

func newHistoryHandler(level slog.Leveler) *historyHandler {
	return &historyHandler{level: level}
}

func (h *historyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *historyHandler) Handle(_ context.Context, r slog.Record) error {
	mutex.RLock()
	hist, callback := history, entryCallback
	mutex.RUnlock()
	if hist == nil {
		return nil
	}

	attrs := make(map[string]any)
	module := "app"
	for _, ga := range h.attrs {
		if ga.attr.Key == "module" && len(ga.groups) == 0 {
			module = ga.attr.Value.String()
			continue
		}
		flattenAttr(attrs, ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(attrs, h.groups, a)
		return true
	})

	entry := hist.Append(Entry{
		Timestamp:  r.Time,
		Level:      levelToString(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	})
	if callback != nil {
		callback(entry)
	}
	return nil
}

func (h *historyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.attrs[:len(h.attrs):len(h.attrs)]
	for _, a := range attrs {
		bound = append(bound, groupedAttr{groups: h.groups, attr: a})
	}
	return &historyHandler{level: h.level, attrs: bound, groups: h.groups}
}

func (h *historyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &historyHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}

// flattenAttr stores a into attrs with dot-joined group keys.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		sub := append(groups[:len(groups):len(groups)], a.Key)
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, sub, ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}
