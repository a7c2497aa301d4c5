package daemon

import (
	"context"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"autorip/internal/logging"
)

// mediaSettleDelay is how long the monitor waits after the last media event
// before triggering a scan. udev emits several change events per insertion
// and MakeMKV reports the drive as empty until the disc has spun up.
const mediaSettleDelay = 2 * time.Second

// netlinkMonitor turns udev media events into poller triggers. Timer ticks
// remain the source of truth; events only shorten the wait after an insert.
type netlinkMonitor struct {
	logger  *slog.Logger
	trigger func(reason string) bool
	settle  time.Duration

	mu      sync.Mutex
	conn    *netlink.UEventConn
	cancel  context.CancelFunc
	done    chan struct{}
	pending map[string]struct{}
	timer   *time.Timer
}

func newNetlinkMonitor(logger *slog.Logger, trigger func(reason string) bool) *netlinkMonitor {
	if trigger == nil {
		return nil
	}
	return &netlinkMonitor{
		logger:  logging.NewComponentLogger(logger, "netlink-monitor"),
		trigger: trigger,
		settle:  mediaSettleDelay,
		pending: make(map[string]struct{}),
	}
}

// Start connects to the kernel uevent socket. A failed connection is logged
// and leaves the monitor stopped.
func (m *netlinkMonitor) Start(ctx context.Context) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; disc detection will rely on the poll timer", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "new discs are noticed on the next tick only"),
		)
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.conn = conn
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.monitorLoop(loopCtx, conn, m.done)

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
		logging.Duration("settle", m.settle),
	)
}

// Stop ends the event loop and drops any pending trigger.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	cancel, done, conn := m.cancel, m.done, m.conn
	m.cancel, m.done, m.conn = nil, nil, nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	clear(m.pending)
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	_ = conn.Close()
	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the monitor is connected.
func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *netlinkMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, done chan struct{}) {
	defer close(done)
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())
	defer close(monitorQuit)

	for {
		select {
		case <-ctx.Done():
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "disc detection falls back to the poll timer"),
			)
		}
	}
}

// buildMatcher accepts optical media events: SUBSYSTEM=block, ID_CDROM=1,
// ID_CDROM_MEDIA=1 with ACTION change or add.
func buildMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

// handleEvent records the event's device and (re)arms the settle timer.
// With a zero settle delay the trigger fires immediately.
func (m *netlinkMonitor) handleEvent(uevent netlink.UEvent) {
	device := deviceName(uevent)
	if device == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	m.mu.Lock()
	m.pending[device] = struct{}{}
	if m.settle <= 0 {
		m.mu.Unlock()
		m.flush()
		return
	}
	if m.timer == nil {
		m.timer = time.AfterFunc(m.settle, m.flush)
	} else {
		m.timer.Reset(m.settle)
	}
	m.mu.Unlock()
}

func (m *netlinkMonitor) flush() {
	m.mu.Lock()
	devices := make([]string, 0, len(m.pending))
	for device := range m.pending {
		devices = append(devices, device)
	}
	clear(m.pending)
	m.timer = nil
	m.mu.Unlock()
	if len(devices) == 0 {
		return
	}
	slices.Sort(devices)
	joined := strings.Join(devices, ",")

	if !m.trigger("netlink " + joined) {
		m.logger.Debug("media event ignored; polling stopped or cycle in flight",
			logging.String("devices", joined),
		)
		return
	}
	m.logger.Info("disc media detected via netlink",
		logging.String(logging.FieldEventType, "netlink_disc_detected"),
		logging.String("devices", joined),
	)
}

func deviceName(uevent netlink.UEvent) string {
	if name := uevent.Env["DEVNAME"]; name != "" {
		if !strings.HasPrefix(name, "/") {
			name = "/dev/" + name
		}
		return name
	}
	if devpath := uevent.Env["DEVPATH"]; devpath != "" {
		return "/dev/" + path.Base(devpath)
	}
	return ""
}
