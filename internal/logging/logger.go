package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Console receives every record alongside the file. Nil disables it.
	Console io.Writer
	// FilePath is the per-run daemon log. Empty disables file output.
	FilePath    string
	Development bool
}

// New builds a logger writing to the console and the run's log file. The
// returned close function releases the file and is safe to call when no file
// was opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := ParseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	out, closeFn, err := openSinks(opts.Console, opts.FilePath)
	if err != nil {
		return nil, nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug
	var handler slog.Handler
	if format == "json" {
		handler = newJSONHandler(out, levelVar, addSource)
	} else {
		handler = newPrettyHandler(out, levelVar, addSource)
	}
	return slog.New(handler), closeFn, nil
}

// ParseLevel maps a config level name onto a slog level. Unknown values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openSinks(console io.Writer, path string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	path = strings.TrimSpace(path)
	if path == "" {
		if console == nil {
			return io.Discard, noop, nil
		}
		return console, noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	if console == nil {
		return file, file.Close, nil
	}
	return io.MultiWriter(console, file), file.Close, nil
}
