package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"autorip/internal/config"
	"autorip/internal/history"
	"autorip/internal/logging"
	"autorip/internal/notifications"
	"autorip/internal/poller"
)

// ErrAlreadyLocked reports that another daemon holds the instance lock.
var ErrAlreadyLocked = errors.New("another autorip daemon instance is already running")

// Deps are the collaborators a Daemon coordinates.
type Deps struct {
	Poller   *poller.Service
	History  *history.Store
	Notifier notifications.Service
}

// Daemon coordinates polling and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	poller   *poller.Service
	history  *history.Store
	notifier notifications.Service
	netlink  *netlinkMonitor

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	lastEvent   atomic.Pointer[poller.StatusEvent]
	unsubscribe func()
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	Polling          bool
	Phase            poller.Phase
	CurrentOperation string
	Mode             poller.Mode
	Interval         time.Duration
	LastTransition   time.Time
	Tracked          []poller.TrackedDisc
	NetlinkActive    bool
	LastRun          *history.Entry
	HistoryPath      string
	LockFilePath     string
}

// New constructs a daemon around an already configured poller.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Poller == nil {
		return nil, errors.New("daemon requires config and poller")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		poller:   deps.Poller,
		history:  deps.History,
		notifier: notifier,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	if cfg.Polling.Netlink {
		d.netlink = newNetlinkMonitor(logger, d.poller.Trigger)
	}
	return d, nil
}

// Start acquires the instance lock, settles stale history and, when
// configured, begins polling.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyLocked
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.unsubscribe = d.poller.Subscribe(func(ev poller.StatusEvent) {
		d.lastEvent.Store(&ev)
	})

	if d.history != nil {
		if n, err := d.history.ResetInterrupted(d.ctx, time.Now()); err != nil {
			logging.WarnWithContext(d.logger, "failed to settle interrupted runs", "history_reset_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete "+d.history.Path()+" if the schema is corrupt"),
			)
		} else if n > 0 {
			d.logger.Info("marked runs from previous process as interrupted",
				logging.String(logging.FieldEventType, "history_runs_interrupted"),
				logging.Int64("count", n),
			)
		}
	}

	d.running.Store(true)
	d.logger.Info("autorip daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)

	if d.cfg.Polling.Autostart {
		d.poller.Start(d.ctx)
	}
	d.netlink.Start(d.ctx)
	return nil
}

// Stop halts polling, waits up to ctx for an in-flight run and releases the
// instance lock.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return nil
	}

	d.netlink.Stop()
	err := d.poller.Shutdown(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "in-flight run cancelled during shutdown", "daemon_shutdown_abort",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-insert the disc after restart to process it again"),
		)
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if unlockErr := d.lock.Unlock(); unlockErr != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(unlockErr),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("autorip daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return err
}

// Close stops the daemon and releases the history store.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = d.Stop(ctx)
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// StartPolling begins polling. It reports whether polling state changed.
func (d *Daemon) StartPolling() (bool, error) {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if !d.running.Load() || ctx == nil {
		return false, errors.New("daemon not running")
	}
	return d.poller.Start(ctx), nil
}

// StopPolling halts future ticks. A run in flight completes normally.
func (d *Daemon) StopPolling() bool {
	return d.poller.Stop()
}

// Scan requests an immediate scan cycle.
func (d *Daemon) Scan() bool {
	return d.poller.Trigger("manual")
}

// History returns recent runs, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.List(ctx, limit)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if !notifications.Enabled(d.notifier) {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	ps := d.poller.Status()
	st := Status{
		Running:          d.running.Load(),
		Polling:          ps.Polling,
		Phase:            ps.Phase,
		CurrentOperation: ps.CurrentOperation,
		Mode:             ps.Mode,
		Interval:         ps.Interval,
		Tracked:          d.poller.Tracked(),
		NetlinkActive:    d.netlink.Running(),
		LockFilePath:     d.lockPath,
	}
	if ev := d.lastEvent.Load(); ev != nil {
		st.LastTransition = ev.At
	}
	if d.history != nil {
		st.HistoryPath = d.history.Path()
		if entries, err := d.history.List(ctx, 1); err == nil && len(entries) > 0 {
			st.LastRun = &entries[0]
		}
	}
	return st
}
