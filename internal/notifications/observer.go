package notifications

import (
	"context"
	"log/slog"

	"autorip/internal/config"
	"autorip/internal/logging"
	"autorip/internal/poller"
)

// Observer forwards poller runs to a Service according to the configured
// per-event toggles.
type Observer struct {
	svc       Service
	started   bool
	completed bool
	errors    bool
	logger    *slog.Logger
}

// NewObserver wraps svc as a poller.RunObserver.
func NewObserver(svc Service, cfg config.Notifications, logger *slog.Logger) *Observer {
	return &Observer{
		svc:       svc,
		started:   cfg.RunStarted,
		completed: cfg.RunCompleted,
		errors:    cfg.Errors,
		logger:    logging.NewComponentLogger(logger, "notifications"),
	}
}

func (o *Observer) RunStarted(ctx context.Context, run poller.Run) {
	if !o.started {
		return
	}
	o.report(ctx, "run_started", o.svc.NotifyRunStarted(ctx, string(run.Mode), discNames(run)))
}

func (o *Observer) RunFinished(ctx context.Context, run poller.Run) {
	ctx = context.WithoutCancel(ctx)
	switch {
	case run.Err != nil && o.errors:
		o.report(ctx, "run_failed", o.svc.NotifyRunFailed(ctx, string(run.Mode), discNames(run), run.Err))
	case run.Err == nil && o.completed:
		o.report(ctx, "run_completed", o.svc.NotifyRunCompleted(ctx, string(run.Mode), discNames(run), run.Duration()))
	}
}

func (o *Observer) report(ctx context.Context, event string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "notification delivery failed", "notification_failed",
		logging.String("notification", event),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
		logging.String(logging.FieldImpact, "run outcome was not pushed"),
	)
}

func discNames(run poller.Run) []string {
	names := make([]string, 0, len(run.Discs))
	for _, rec := range run.Discs {
		names = append(names, rec.Title)
	}
	return names
}
