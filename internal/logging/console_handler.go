package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one header line per record followed by indented
// fields. Info and above show a curated field list; debug shows every field.
type consoleHandler struct {
	out       *consoleSink
	level     *slog.LevelVar
	preset    []kv
	groups    []string
	addSource bool
}

// consoleSink serializes writes across handlers derived with WithAttrs.
type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{out: &consoleSink{w: w}, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append([]kv(nil), h.preset...)
	for _, a := range attrs {
		next.preset = appendAttr(next.preset, h.groups, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	fields := append([]kv(nil), h.preset...)
	record.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.groups, a)
		return true
	})
	fields = dedupeKVsByKey(fields)

	head := recordHeader{level: record.Level, message: strings.TrimSpace(record.Message), at: record.Time}
	body := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			head.component = attrString(f.value)
			continue
		case FieldDriveID:
			head.drive = attrString(f.value)
		}
		body = append(body, f)
	}
	if h.addSource {
		head.source = record.Source()
	}

	var sb strings.Builder
	head.write(&sb)
	if record.Level >= slog.LevelInfo {
		writeInfoFields(&sb, body)
	} else {
		for _, f := range body {
			sb.WriteString("    " + f.key + ": " + formatValue(f.value) + "\n")
		}
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, sb.String())
	return err
}

type recordHeader struct {
	at        time.Time
	level     slog.Level
	component string
	drive     string
	message   string
	source    *slog.Source
}

func (r recordHeader) write(sb *strings.Builder) {
	at := r.at
	if at.IsZero() {
		at = time.Now()
	}
	sb.WriteString(formatTimestamp(at))
	sb.WriteString(" " + levelLabel(r.level))
	if r.component != "" {
		sb.WriteString(" [" + r.component + "]")
	}
	if r.drive != "" {
		sb.WriteString(" Drive " + r.drive)
	}
	msg := r.message
	if msg == "" {
		msg = "(no message)"
	}
	sb.WriteString(" – " + msg)
	if r.source != nil && r.source.File != "" {
		sb.WriteString(" [" + filepath.Base(r.source.File) + ":" + strconv.Itoa(r.source.Line) + "]")
	}
	sb.WriteByte('\n')
}

func writeInfoFields(sb *strings.Builder, fields []kv) {
	shown, hidden := selectInfoFields(fields)
	for _, f := range shown {
		sb.WriteString("    - " + f.label + ": " + f.value + "\n")
	}
	switch {
	case hidden == 1:
		sb.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		sb.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
	}
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key and the last value
// written to it.
func dedupeKVsByKey(fields []kv) []kv {
	seen := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := seen[f.key]; ok {
			out[i].value = f.value
			continue
		}
		seen[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// appendAttr flattens groups into dotted keys.
func appendAttr(dst []kv, groups []string, a slog.Attr) []kv {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := groups
		if a.Key != "" {
			inner = append(append([]string(nil), groups...), a.Key)
		}
		for _, member := range a.Value.Group() {
			dst = appendAttr(dst, inner, member)
		}
		return dst
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, kv{key: key, value: a.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
