package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"autorip/internal/config"
	"autorip/internal/history"
	"autorip/internal/ipc"
	"autorip/internal/preflight"
)

// ErrDaemonNotRunning reports that nothing is listening on the daemon socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollEvery = 200 * time.Millisecond

// LaunchOptions are passed through to the detached daemon process.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult describes what EnsureStarted did.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// ShutdownResult describes how the daemon went away.
type ShutdownResult struct {
	Acknowledged bool
	ForcedKill   bool
	PID          int
}

// Snapshot is everything the status command renders.
type Snapshot struct {
	Daemon        ipc.StatusResponse
	Dependencies  []preflight.Dependency
	Directories   []preflight.Result
	Notifications bool
}

// IsUnavailable reports whether err means no daemon is listening on the
// socket, as opposed to a daemon that answered badly.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonNotRunning) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// dial connects to the daemon, mapping a missing or refusing socket to
// ErrDaemonNotRunning.
func dial(socketPath string) (*ipc.Client, error) {
	client, err := ipc.Dial(socketPath)
	if err == nil {
		return client, nil
	}
	if IsUnavailable(err) {
		return nil, fmt.Errorf("%w (socket %s)", ErrDaemonNotRunning, socketPath)
	}
	return nil, err
}

// pollUntil calls check every pollEvery until it reports done or timeout
// passes. The last error from check is returned on timeout.
func pollUntil(timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		done, err := check()
		if done {
			return nil
		}
		lastErr = err
		if time.Now().Add(pollEvery).After(deadline) {
			break
		}
		time.Sleep(pollEvery)
	}
	if lastErr == nil {
		lastErr = errors.New("timed out")
	}
	return lastErr
}

// Launch starts `<executable> daemon` in its own session and detaches.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("launch daemon: executable path is empty")
	}
	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits until the daemon socket accepts connections.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := pollUntil(timeout, func() (bool, error) {
		c, err := ipc.Dial(socketPath)
		if err != nil {
			return false, err
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

// EnsureStarted launches the daemon if nothing answers on socketPath, then
// makes sure polling is on.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	launched := false
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executablePath, opts); err != nil {
			return StartResult{}, err
		}
		if client, err = WaitForClient(socketPath, waitTimeout); err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	// A fresh daemon with autostart on is already polling.
	if status, err := client.Status(); err == nil && status.Polling {
		return startOutcome(true, launched, ""), nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
	case strings.EqualFold(message, "polling already running"):
		return startOutcome(true, launched, message), nil
	case message == "":
		message = "Start request sent"
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
}

func startOutcome(polling, launched bool, message string) StartResult {
	if polling && !launched {
		return StartResult{State: StartStateAlreadyRunning, Message: message}
	}
	return StartResult{State: StartStateStarted, Launched: launched, Message: message}
}

// StopPolling turns polling off. The daemon keeps running.
func StopPolling(socketPath string) (*ipc.StopResponse, error) {
	client, err := dial(socketPath)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Stop()
}

// WaitForShutdown waits until the socket stops answering or the daemon
// reports it is no longer running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	err := pollUntil(timeout, func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return IsUnavailable(err), err
		}
		status, err := client.Status()
		_ = client.Close()
		if err != nil {
			return false, err
		}
		if status.Running {
			return false, errors.New("daemon still running")
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// ProcessInfo reports whether the daemon answers and, if so, its PID.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := dial(socketPath)
	if errors.Is(err, ErrDaemonNotRunning) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// ForceKillProcess sends SIGKILL to the daemon named by pidPath, or to
// fallbackPID when the file is unreadable, and removes the pid and lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := readPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		pid = fallbackPID
	}
	switch {
	case pid <= 0:
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	case pid == os.Getpid():
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pid, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// readPID returns 0 without error when the file is missing or malformed.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}

// ShutdownAndTerminate asks the daemon to exit and kills it if it still
// answers after gracePeriod. gracePeriod should exceed the daemon's own
// shutdown grace so an in-flight rip gets its chance to stop cleanly.
func ShutdownAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (ShutdownResult, error) {
	client, err := dial(socketPath)
	if err != nil {
		return ShutdownResult{}, err
	}
	var result ShutdownResult
	if status, err := client.Status(); err == nil {
		result.PID = status.PID
	}
	resp, err := client.Shutdown()
	_ = client.Close()
	if err != nil {
		return ShutdownResult{}, err
	}
	result.Acknowledged = resp.Accepted

	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}
	alive, pid, err := ProcessInfo(socketPath)
	if err != nil || !alive {
		return result, nil
	}
	if pid == 0 {
		pid = result.PID
	}
	if cfg == nil {
		return result, fmt.Errorf("daemon still running (pid %d) and no config to locate its pid file", pid)
	}
	killed, err := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// BuildStatusSnapshot collects daemon status plus local checks. When the
// daemon is down the status is synthesized from cfg and the last run comes
// from the history database.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{
		Dependencies:  preflight.CheckSystemDeps(cfg),
		Directories:   preflight.RunAll(cfg),
		Notifications: strings.TrimSpace(cfg.Notifications.NtfyTopic) != "",
	}

	if client, err := ipc.Dial(socketPath); err == nil {
		resp, err := client.Status()
		_ = client.Close()
		if err == nil {
			snap.Daemon = *resp
			return snap, nil
		}
	}

	snap.Daemon = ipc.StatusResponse{
		Phase:           "idle",
		Mode:            cfg.Polling.Mode,
		IntervalSeconds: cfg.Polling.IntervalSeconds,
		HistoryPath:     cfg.HistoryPath(),
		LockPath:        cfg.LockPath(),
	}
	if entries, err := offlineHistory(ctx, cfg, 1); err == nil && len(entries) > 0 {
		snap.Daemon.LastRun = &entries[0]
	}
	return snap, nil
}

// History lists recent runs through the daemon, or straight from the
// history database when the daemon is not running.
func History(ctx context.Context, socketPath string, cfg *config.Config, limit int) ([]ipc.HistoryEntry, error) {
	client, err := dial(socketPath)
	switch {
	case err == nil:
		defer client.Close()
		resp, err := client.History(limit)
		if err != nil {
			return nil, err
		}
		return resp.Entries, nil
	case !errors.Is(err, ErrDaemonNotRunning):
		return nil, err
	case cfg == nil:
		return nil, err
	}
	return offlineHistory(ctx, cfg, limit)
}

func offlineHistory(ctx context.Context, cfg *config.Config, limit int) ([]ipc.HistoryEntry, error) {
	path := cfg.HistoryPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	entries, err := store.List(queryCtx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.HistoryEntry, len(entries))
	for i, entry := range entries {
		out[i] = ipc.FromHistoryEntry(entry)
	}
	return out, nil
}
