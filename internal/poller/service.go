package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"autorip/internal/disc"
	"autorip/internal/logging"
)

// Inventory reports inserted discs. Detect must be cheap; Enrich is called
// only with discs the service has not handled yet.
type Inventory interface {
	Detect(ctx context.Context) ([]disc.Record, error)
	Enrich(ctx context.Context, records []disc.Record) ([]disc.Record, error)
}

// Pipeline processes a dispatched batch to completion or failure.
type Pipeline interface {
	RunRip(ctx context.Context, records []disc.Record) error
	RunBackup(ctx context.Context, records []disc.Record) error
}

// Options configures a Service.
type Options struct {
	Interval  time.Duration
	Mode      Mode
	Inventory Inventory
	Pipeline  Pipeline
	Observer  RunObserver
	Logger    *slog.Logger
	// NewRunID overrides run identifier generation (defaults to UUIDs).
	NewRunID func() string
	Clock    func() time.Time
}

// Status is a point-in-time view of the service.
type Status struct {
	Polling bool
	Phase   Phase
	// CurrentOperation is "processing" while a run is active and empty otherwise.
	CurrentOperation string
	Mode             Mode
	Interval         time.Duration
}

// Service owns the poll scheduler, dedup tracker, operation gate and status
// subscriptions for one set of drives.
type Service struct {
	interval  time.Duration
	mode      Mode
	inventory Inventory
	pipeline  Pipeline
	observer  RunObserver
	logger    *slog.Logger
	newRunID  func() string
	now       func() time.Time

	tracker  *tracker
	gate     gate
	notifier *notifier

	mu       sync.Mutex
	running  bool
	stopLoop context.CancelFunc
	loopDone chan struct{}
	cycles   sync.WaitGroup

	// phaseMu orders phase publishes against changes to running, so the
	// event stream never ends on a phase the service has already left.
	phaseMu sync.Mutex

	// workCtx is handed to collaborators; Shutdown cancels it once the
	// grace period expires and installs a fresh one after the work drains.
	workCtx   context.Context
	abortWork context.CancelFunc
}

// New constructs a stopped Service.
func New(opts Options) (*Service, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if opts.Inventory == nil {
		return nil, errors.New("inventory required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	s := &Service{
		interval:  opts.Interval,
		mode:      mode,
		inventory: opts.Inventory,
		pipeline:  opts.Pipeline,
		observer:  opts.Observer,
		logger:    logging.NewComponentLogger(opts.Logger, "poller"),
		newRunID:  opts.NewRunID,
		now:       opts.Clock,
		tracker:   newTracker(),
		notifier:  newNotifier(),
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.newRunID == nil {
		s.newRunID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.workCtx, s.abortWork = context.WithCancel(context.Background())
	return s, nil
}

// Start begins ticking at the configured interval and publishes the scanning
// phase. It reports false, and changes nothing, when polling is already active.
// The loop also ends when ctx is cancelled.
func (s *Service) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("polling already running; start ignored",
			logging.String(logging.FieldEventType, "poll_start_ignored"))
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running = true
	s.stopLoop = cancel
	s.loopDone = done
	s.mu.Unlock()

	go s.loop(loopCtx, done)

	s.logger.Info("polling started",
		logging.String(logging.FieldEventType, "poll_started"),
		logging.Mode(string(s.mode)),
		logging.Duration("interval", s.interval),
	)
	// A run dispatched before the last Stop may still be in flight.
	s.publishPhase(s.activeIfPolling)
	return true
}

// Stop cancels future ticks and publishes the idle phase. A scan or run
// already in flight is not interrupted. It reports false when polling was
// not active.
func (s *Service) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	cancel, done := s.stopLoop, s.loopDone
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info("polling stopped", logging.String(logging.FieldEventType, "poll_stopped"))
	s.publishPhase(s.idleIfStopped)
	return true
}

// Shutdown stops polling and waits for in-flight work. If ctx expires first,
// in-flight collaborator calls are cancelled and awaited. The service can be
// started again afterwards.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Stop()
	done := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	logging.WarnWithContext(s.logger, "shutdown grace expired; cancelling in-flight work", "poll_shutdown_abort",
		logging.String(logging.FieldErrorHint, "the current rip or backup will be incomplete"),
		logging.String(logging.FieldImpact, "partial output may remain in the destination directory"),
	)
	// Cycles in flight keep the cancelled context; later ones get a new one.
	s.mu.Lock()
	s.abortWork()
	s.workCtx, s.abortWork = context.WithCancel(context.Background())
	s.mu.Unlock()
	<-done
	return ctx.Err()
}

// Status returns the current state without side effects.
func (s *Service) Status() Status {
	s.mu.Lock()
	polling := s.running
	s.mu.Unlock()

	st := Status{Polling: polling, Mode: s.mode, Interval: s.interval, Phase: PhaseIdle}
	if polling {
		st.Phase = PhaseScanning
	}
	if s.gate.current() == gateProcessing {
		st.Phase = PhaseProcessing
		st.CurrentOperation = "processing"
	}
	return st
}

// activePhase is the phase a polling service is in: processing while a run
// holds the gate, scanning otherwise.
func (s *Service) activePhase() Phase {
	if s.gate.current() == gateProcessing {
		return PhaseProcessing
	}
	return PhaseScanning
}

// Trigger runs a scan cycle now, subject to the same gate as timer ticks.
// It reports whether a cycle was started.
func (s *Service) Trigger(reason string) bool {
	return s.tick(reason)
}

// Tracked returns the drives whose discs are currently considered handled.
func (s *Service) Tracked() []TrackedDisc {
	return s.tracker.snapshot()
}

// Subscribe registers fn for status events and returns a function that
// removes the registration. fn runs while phase publishes are serialized and
// must not call Start, Stop or Shutdown.
func (s *Service) Subscribe(fn func(StatusEvent)) func() {
	return s.notifier.subscribe(fn)
}

func (s *Service) isPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// publishPhase publishes the phase chosen by pick, which runs under phaseMu
// and may decline. The timestamp is taken before the lock so a clock never
// runs while a competing publish waits.
func (s *Service) publishPhase(pick func() (Phase, bool)) {
	at := s.now()
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	phase, ok := pick()
	if !ok {
		return
	}
	s.logger.Debug("phase changed", logging.Phase(phase.String()))
	s.notifier.publish(StatusEvent{State: phase, At: at})
}

func (s *Service) idleIfStopped() (Phase, bool) { return PhaseIdle, !s.isPolling() }

func (s *Service) activeIfPolling() (Phase, bool) { return s.activePhase(), s.isPolling() }

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.loopEnded(done)
			return
		case <-ticker.C:
			s.tick("timer")
		}
	}
}

// loopEnded handles the loop exiting because the parent context ended rather
// than through Stop.
func (s *Service) loopEnded(done chan struct{}) {
	s.mu.Lock()
	stale := !s.running || s.loopDone != done
	if !stale {
		s.running = false
	}
	s.mu.Unlock()
	if stale {
		return
	}
	s.logger.Info("polling stopped; context ended", logging.String(logging.FieldEventType, "poll_stopped"))
	s.publishPhase(s.idleIfStopped)
}

// tick starts one scan cycle when polling is active and the gate is free.
// Otherwise the tick is dropped.
func (s *Service) tick(trigger string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	if !s.gate.tryScan() {
		s.logger.Debug("tick dropped; operation in flight",
			logging.String("trigger", trigger),
			logging.Bool("processing", s.gate.current() == gateProcessing),
		)
		return false
	}
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer s.gate.release()
		s.scanCycle(s.workCtx, trigger)
	}()
	return true
}
