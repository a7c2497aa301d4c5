package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"autorip/internal/disc"
	"autorip/internal/logging"
)

// Run describes one dispatched batch.
type Run struct {
	ID         string
	Mode       Mode
	Discs      []disc.Record
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Duration reports how long the run took, or zero while it is still active.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunObserver is told about every run. Calls happen on the dispatching
// goroutine while the gate is held.
type RunObserver interface {
	RunStarted(ctx context.Context, run Run)
	RunFinished(ctx context.Context, run Run)
}

// Observers fans run notifications out to several observers in order.
type Observers []RunObserver

func (o Observers) RunStarted(ctx context.Context, run Run) {
	for _, obs := range o {
		if obs != nil {
			obs.RunStarted(ctx, run)
		}
	}
}

func (o Observers) RunFinished(ctx context.Context, run Run) {
	for _, obs := range o {
		if obs != nil {
			obs.RunFinished(ctx, run)
		}
	}
}

type noopObserver struct{}

func (noopObserver) RunStarted(context.Context, Run)  {}
func (noopObserver) RunFinished(context.Context, Run) {}

// dispatch hands batch to the pipeline. Pipeline failures are logged and
// never propagate; the batch stays tracked either way.
func (s *Service) dispatch(ctx context.Context, batch []disc.Record) {
	if !s.gate.promote() {
		logging.ErrorWithContext(s.logger, "dispatch skipped; gate not held by scan", "dispatch_gate_conflict")
		return
	}
	s.publishPhase(func() (Phase, bool) { return PhaseProcessing, true })
	defer func() {
		s.gate.demote()
		s.publishPhase(s.activeIfPolling)
	}()

	s.tracker.mark(batch)

	run := Run{ID: s.newRunID(), Mode: s.mode, Discs: batch, StartedAt: s.now()}
	ctx = logging.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("dispatching discs",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Mode(string(run.Mode)),
		logging.Int("disc_count", len(batch)),
		logging.String("discs", titles(batch)),
	)
	s.notifyObserver(logger, func() { s.observer.RunStarted(ctx, run) })

	run.Err = s.runPipeline(ctx, batch)
	run.FinishedAt = s.now()

	if run.Err != nil {
		logging.ErrorWithContext(logger, "processing run failed", "run_failed",
			logging.Mode(string(run.Mode)),
			logging.Error(run.Err),
			logging.String(logging.FieldErrorHint, "eject and reinsert the disc to retry"),
		)
	} else {
		logger.Info("processing run completed",
			logging.String(logging.FieldEventType, "run_completed"),
			logging.Mode(string(run.Mode)),
			logging.Duration("duration", run.Duration()),
		)
	}
	s.notifyObserver(logger, func() { s.observer.RunFinished(ctx, run) })
}

func (s *Service) runPipeline(ctx context.Context, batch []disc.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	switch s.mode {
	case ModeBackup:
		return s.pipeline.RunBackup(ctx, batch)
	default:
		return s.pipeline.RunRip(ctx, batch)
	}
}

func (s *Service) notifyObserver(logger *slog.Logger, call func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(logger, "run observer panicked", "observer_panic",
				logging.String(logging.FieldErrorHint, "inspect history and notification settings"),
				logging.String(logging.FieldImpact, "run bookkeeping may be incomplete"),
				logging.Any("panic", r),
			)
		}
	}()
	call()
}
