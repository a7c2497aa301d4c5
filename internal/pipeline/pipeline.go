package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"autorip/internal/disc"
	"autorip/internal/logging"
)

// Options configures a MakeMKV pipeline.
type Options struct {
	Binary           string
	RipDir           string
	BackupDir        string
	MinLengthSeconds int
	// RipTimeout bounds each disc; zero means no bound.
	RipTimeout time.Duration
	// Ejector is invoked after a disc completes successfully; nil disables ejecting.
	Ejector  disc.Ejector
	Executor Executor
	Logger   *slog.Logger
}

// MakeMKV runs rips and backups with makemkvcon, one disc at a time.
type MakeMKV struct {
	binary     string
	ripDir     string
	backupDir  string
	minLength  int
	ripTimeout time.Duration
	ejector    disc.Ejector
	exec       Executor
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a MakeMKV pipeline.
func New(opts Options) (*MakeMKV, error) {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		return nil, errors.New("makemkv binary required")
	}
	if strings.TrimSpace(opts.RipDir) == "" {
		return nil, errors.New("rip directory required")
	}
	if strings.TrimSpace(opts.BackupDir) == "" {
		return nil, errors.New("backup directory required")
	}
	p := &MakeMKV{
		binary:     binary,
		ripDir:     opts.RipDir,
		backupDir:  opts.BackupDir,
		minLength:  opts.MinLengthSeconds,
		ripTimeout: opts.RipTimeout,
		ejector:    opts.Ejector,
		exec:       opts.Executor,
		logger:     logging.NewComponentLogger(opts.Logger, "pipeline"),
		now:        time.Now,
	}
	if p.exec == nil {
		p.exec = commandExecutor{}
	}
	return p, nil
}

type job struct {
	name    string
	root    string
	args    func(rec disc.Record, dest string) []string
	produce func(dest string) error
}

// RunRip saves every title of each disc as MKV files under the rip directory.
func (p *MakeMKV) RunRip(ctx context.Context, records []disc.Record) error {
	return p.runBatch(ctx, records, job{
		name: "rip",
		root: p.ripDir,
		args: func(rec disc.Record, dest string) []string {
			args := []string{"-r", "--progress=-same"}
			if p.minLength > 0 {
				args = append(args, "--minlength="+strconv.Itoa(p.minLength))
			}
			return append(args, "mkv", rec.SourceArg(), "all", dest)
		},
		produce: requireMKV,
	})
}

// RunBackup writes a decrypted disc backup for each disc under the backup directory.
func (p *MakeMKV) RunBackup(ctx context.Context, records []disc.Record) error {
	return p.runBatch(ctx, records, job{
		name: "backup",
		root: p.backupDir,
		args: func(rec disc.Record, dest string) []string {
			return []string{"-r", "--progress=-same", "backup", "--decrypt", rec.SourceArg(), dest}
		},
		produce: requireNonEmpty,
	})
}

func (p *MakeMKV) runBatch(ctx context.Context, records []disc.Record, j job) error {
	logger := logging.WithContext(ctx, p.logger)
	var errs []error
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", j.name, rec, err))
			break
		}
		if err := p.runOne(ctx, logger, rec, j); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", j.name, rec, err))
			continue
		}
		p.eject(ctx, logger, rec)
	}
	return errors.Join(errs...)
}

func (p *MakeMKV) runOne(ctx context.Context, logger *slog.Logger, rec disc.Record, j job) error {
	dest, err := p.prepareDestination(j.root, rec.Title)
	if err != nil {
		return err
	}
	logger = logger.With(
		logging.DriveID(rec.DriveID),
		logging.DiscTitle(rec.Title),
	)
	logger.Info(j.name+" started", append([]any{
		logging.String(logging.FieldEventType, j.name+"_started"),
		logging.String("destination", dest),
	}, discSummary(rec)...)...)

	runCtx := ctx
	if p.ripTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.ripTimeout)
		defer cancel()
	}

	started := p.now()
	var (
		tracker disc.ProgressTracker
		sampler = logging.NewProgressSampler(10)
		output  []string
	)
	runErr := p.exec.Run(runCtx, p.binary, j.args(rec, dest), func(line string) {
		if progress, changed := tracker.Observe(line); changed && sampler.Sample(progress.Operation, progress.Percent()) {
			logger.Info(j.name+" progress",
				logging.String("operation", progress.Operation),
				logging.Float64("progress_percent", progress.Percent()),
			)
			return
		}
		if strings.HasPrefix(line, "MSG:") {
			output = append(output, line)
		}
	})
	if runErr != nil {
		if msg := disc.ErrorMessage([]byte(strings.Join(output, "\n")), nil); msg != "" {
			return fmt.Errorf("makemkv %s: %s: %w", j.name, msg, runErr)
		}
		return fmt.Errorf("makemkv %s: %w", j.name, runErr)
	}
	if err := j.produce(dest); err != nil {
		return err
	}

	logger.Info(j.name+" completed",
		logging.String(logging.FieldEventType, j.name+"_completed"),
		logging.String("destination", dest),
		logging.Duration("duration", p.now().Sub(started)),
	)
	return nil
}

// discSummary describes the title table of an enriched disc.
func discSummary(rec disc.Record) []any {
	if !rec.Enriched() {
		return nil
	}
	attrs := []any{logging.Int("title_count", len(rec.FileInfo.Titles))}
	if main, ok := rec.FileInfo.LongestTitle(); ok {
		attrs = append(attrs,
			logging.String("main_title", main.Name),
			logging.Duration("main_title_length", time.Duration(main.Duration)*time.Second),
		)
	}
	return attrs
}

// prepareDestination picks an unused directory under root named after the disc.
// Generic labels get a timestamp suffix so unrelated discs do not collide.
func (p *MakeMKV) prepareDestination(root, title string) (string, error) {
	name := disc.SafeName(title)
	if disc.IsGenericLabel(title) {
		name += "-" + p.now().Format("20060102-150405")
	}
	dest := filepath.Join(root, name)
	for attempt := 2; dirHasEntries(dest); attempt++ {
		dest = filepath.Join(root, fmt.Sprintf("%s-%d", name, attempt))
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	return dest, nil
}

func (p *MakeMKV) eject(ctx context.Context, logger *slog.Logger, rec disc.Record) {
	if p.ejector == nil || rec.Device == "" {
		return
	}
	err := p.ejector.Eject(ctx, rec.Device)
	switch {
	case err == nil:
		logger.Debug("disc ejected", logging.DriveID(rec.DriveID))
	case errors.Is(err, disc.ErrNotEjectable):
		logger.Debug("eject skipped", logging.DriveID(rec.DriveID), logging.Error(err))
	default:
		logging.WarnWithContext(logger, "eject failed; disc left in drive", "eject_failed",
			logging.DriveID(rec.DriveID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the eject utility is installed and the drive is not busy"),
			logging.String(logging.FieldImpact, "disc must be removed manually"),
		)
	}
}

func dirHasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func requireMKV(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("inspect rip outputs: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".mkv") {
			return nil
		}
	}
	return errors.New("makemkv produced no output file; check disc for read errors")
}

func requireNonEmpty(dest string) error {
	if !dirHasEntries(dest) {
		return errors.New("makemkv backup produced no files; check disc for read errors")
	}
	return nil
}
