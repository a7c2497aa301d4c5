package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"autorip/internal/disc"
	"autorip/internal/logging"
)

// ErrToolUnavailable reports that makemkvcon could not be executed at all.
// The polling loop treats it as expected noise rather than a warning.
var ErrToolUnavailable = fmt.Errorf("makemkvcon not available: %w", disc.ErrBackendUnavailable)

// listAllDrives is a source index MakeMKV never assigns; asking for it makes
// makemkvcon print every DRV slot without opening a disc.
const listAllDrives = "disc:9999"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).Output() //nolint:gosec
}

// Option configures the inventory.
type Option func(*MakeMKV)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) Option {
	return func(m *MakeMKV) {
		if e != nil {
			m.exec = e
		}
	}
}

// WithInfoTimeout bounds each makemkvcon info call. Zero disables the bound.
func WithInfoTimeout(d time.Duration) Option {
	return func(m *MakeMKV) {
		if d > 0 {
			m.infoTimeout = d
		}
	}
}

// WithLogger sets the logger used for enrichment details.
func WithLogger(logger *slog.Logger) Option {
	return func(m *MakeMKV) {
		m.logger = logging.NewComponentLogger(logger, "inventory")
	}
}

// MakeMKV lists drives and reads disc title tables through makemkvcon.
type MakeMKV struct {
	binary      string
	infoTimeout time.Duration
	exec        Executor
	logger      *slog.Logger
}

// New constructs a MakeMKV-backed inventory.
func New(binary string, opts ...Option) (*MakeMKV, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("makemkv binary required")
	}
	m := &MakeMKV{
		binary: binary,
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(nil, "inventory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Drives returns every drive slot MakeMKV knows about, with or without a disc.
func (m *MakeMKV) Drives(ctx context.Context) ([]disc.Drive, error) {
	output, err := m.info(ctx, listAllDrives)
	if err != nil {
		return nil, err
	}
	return disc.ParseDrives(output), nil
}

// Detect returns one unenriched record per drive that currently holds a disc.
func (m *MakeMKV) Detect(ctx context.Context) ([]disc.Record, error) {
	drives, err := m.Drives(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]disc.Record, 0, len(drives))
	for _, drive := range drives {
		if drive.HasDisc() {
			records = append(records, drive.Record())
		}
	}
	return records, nil
}

// Enrich reads the title table of each record. Any failure aborts the batch so
// that no partially described disc is dispatched.
func (m *MakeMKV) Enrich(ctx context.Context, records []disc.Record) ([]disc.Record, error) {
	enriched := make([]disc.Record, 0, len(records))
	for _, rec := range records {
		started := time.Now()
		output, err := m.info(ctx, rec.SourceArg())
		if err != nil {
			return nil, fmt.Errorf("enrich %s: %w", rec, err)
		}
		info, err := disc.ParseInfo(output)
		if err != nil {
			return nil, fmt.Errorf("enrich %s: %w", rec, err)
		}
		rec.FileInfo = info
		enriched = append(enriched, rec)

		m.logger.Debug("disc enriched",
			logging.DriveID(rec.DriveID),
			logging.DiscTitle(rec.Title),
			logging.Int("title_count", len(info.Titles)),
			logging.Int("warning_count", len(info.Warnings)),
			logging.Duration("scan_duration", time.Since(started)),
		)
	}
	return enriched, nil
}

func (m *MakeMKV) info(ctx context.Context, source string) ([]byte, error) {
	if m.infoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.infoTimeout)
		defer cancel()
	}
	args := []string{"-r", "--cache=1", "info", source}
	output, err := m.exec.Run(ctx, m.binary, args)
	if err == nil {
		return output, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrToolUnavailable, err)
	}

	type exitCoder interface{ ExitCode() int }
	var exitErr exitCoder
	if errors.As(err, &exitErr) {
		// The drive listing exits non-zero because the sentinel source does not exist.
		if source == listAllDrives && len(disc.ParseDrives(output)) > 0 {
			return output, nil
		}
		if clean := disc.ErrorMessage(output, stderrOf(err)); clean != "" {
			return nil, fmt.Errorf("makemkv info failed (exit status %d): %s: %w", exitErr.ExitCode(), clean, err)
		}
		return nil, fmt.Errorf("makemkv info failed (exit status %d): %w", exitErr.ExitCode(), err)
	}
	return nil, fmt.Errorf("makemkv info failed: %w", err)
}

func stderrOf(err error) []byte {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return nil
}
