package history

import (
	"context"
	"log/slog"

	"autorip/internal/logging"
	"autorip/internal/poller"
)

// Observer journals runs reported by the poller. Write failures are logged
// and never affect the run.
type Observer struct {
	store  *Store
	logger *slog.Logger
}

// NewObserver wraps store as a poller.RunObserver.
func NewObserver(store *Store, logger *slog.Logger) *Observer {
	return &Observer{store: store, logger: logging.NewComponentLogger(logger, "history")}
}

func (o *Observer) RunStarted(ctx context.Context, run poller.Run) {
	if o == nil || o.store == nil {
		return
	}
	if err := o.store.Begin(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on "+o.store.Path()),
			logging.String(logging.FieldImpact, "run will be missing from history"),
		)
	}
}

func (o *Observer) RunFinished(ctx context.Context, run poller.Run) {
	if o == nil || o.store == nil {
		return
	}
	if err := o.store.Finish(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "history update failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on "+o.store.Path()),
			logging.String(logging.FieldImpact, "run outcome will be missing from history"),
		)
	}
}
