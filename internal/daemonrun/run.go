package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"autorip/internal/config"
	"autorip/internal/daemon"
	"autorip/internal/disc"
	"autorip/internal/history"
	"autorip/internal/inventory"
	"autorip/internal/ipc"
	"autorip/internal/logging"
	"autorip/internal/notifications"
	"autorip/internal/pipeline"
	"autorip/internal/poller"
	"autorip/internal/preflight"
)

// ShutdownGrace bounds how long an in-flight rip or backup may continue after
// a shutdown request before it is cancelled.
const ShutdownGrace = 20 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SocketPath overrides the configured IPC socket.
	SocketPath string
}

// Run starts the autorip daemon and blocks until it receives SIGINT/SIGTERM
// or an IPC shutdown request.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("autorip-%s.log", runStamp))
	logger, closeLog, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Console:     os.Stdout,
		FilePath:    logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()
	if err := ensureCurrentLogPointer(cfg.CurrentLogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update autorip.log link: %v\n", err)
	}
	logging.PruneDaemonLogs(logger, cfg.Paths.LogDir, "autorip-*.log", cfg.Logging.RetentionDays, logPath)
	logPreflight(logger, cfg)

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}
	pruneHistory(signalCtx, logger, store, cfg.Logging.RetentionDays)

	notifier := notifications.NewService(cfg)
	svc, err := buildPoller(cfg, store, notifier, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	d, err := daemon.New(cfg, daemon.Deps{
		Poller:   svc,
		History:  store,
		Notifier: notifier,
	}, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyLocked) {
			logging.ErrorWithContext(logger, "daemon start refused", "daemon_locked",
				logging.Error(err),
				logging.String("lock", cfg.LockPath()),
				logging.String(logging.FieldErrorHint, "run `autorip status` to inspect the running instance"),
			)
		}
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("autorip daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
		logging.Duration("grace", ShutdownGrace),
	)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func buildPoller(cfg *config.Config, store *history.Store, notifier notifications.Service, logger *slog.Logger) (*poller.Service, error) {
	inv, err := inventory.New(cfg.MakeMKV.Binary,
		inventory.WithInfoTimeout(cfg.InfoTimeout()),
		inventory.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create inventory: %w", err)
	}

	var ejector disc.Ejector
	if cfg.MakeMKV.EjectAfter {
		ejector = disc.NewEjector()
	}
	pipe, err := pipeline.New(pipeline.Options{
		Binary:           cfg.MakeMKV.Binary,
		RipDir:           cfg.Paths.RipDir,
		BackupDir:        cfg.Paths.BackupDir,
		MinLengthSeconds: cfg.MakeMKV.MinLengthSeconds,
		RipTimeout:       cfg.RipTimeout(),
		Ejector:          ejector,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	return poller.New(poller.Options{
		Interval:  cfg.PollInterval(),
		Mode:      poller.Mode(cfg.Polling.Mode),
		Inventory: inv,
		Pipeline:  pipe,
		Observer: poller.Observers{
			history.NewObserver(store, logger),
			notifications.NewObserver(notifier, cfg.Notifications, logger),
		},
		Logger: logger,
	})
}

func pruneHistory(ctx context.Context, logger *slog.Logger, store *history.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old runs remain in the history database"),
		)
		return
	}
	if removed > 0 {
		logger.Info("pruned old history runs",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("count", removed),
		)
	}
}

func logPreflight(logger *slog.Logger, cfg *config.Config) {
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		if dep.Available {
			logger.Info("dependency available",
				logging.String(logging.FieldEventType, "dependency_snapshot"),
				logging.String("dependency", dep.Name),
				logging.String("path", dep.Path),
			)
			continue
		}
		logging.WarnWithContext(logger, "dependency missing", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("command", dep.Command),
			logging.Bool("optional", dep.Optional),
			logging.String(logging.FieldErrorHint, dep.Detail),
			logging.String(logging.FieldImpact, dep.Description),
		)
	}
	for _, check := range preflight.Failed(preflight.RunAll(cfg)) {
		logging.WarnWithContext(logger, "directory check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "runs writing to this directory will fail"),
		)
	}
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
