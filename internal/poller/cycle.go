package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autorip/internal/disc"
	"autorip/internal/logging"
)

// scanCycle runs detect, prune, filter, enrich and dispatch once. The caller
// holds the gate in the scanning state.
func (s *Service) scanCycle(ctx context.Context, trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.logScanError("scan", fmt.Errorf("panic: %v", r))
		}
	}()

	detected, err := s.inventory.Detect(ctx)
	if err != nil {
		s.logScanError("detect", err)
		return
	}

	if released := s.tracker.prune(detected); len(released) > 0 {
		s.logger.Info("drives released for reconsideration",
			logging.String(logging.FieldEventType, "drives_released"),
			logging.Strings("drive_ids", released),
		)
	}

	fresh := s.tracker.filterNew(detected)
	s.logger.Debug("scan cycle",
		logging.String("trigger", trigger),
		logging.Int("detected", len(detected)),
		logging.Int("new", len(fresh)),
	)
	if len(fresh) == 0 {
		return
	}

	enriched, err := s.inventory.Enrich(ctx, fresh)
	if err != nil {
		s.logScanError("enrich", err)
		return
	}
	if len(enriched) == 0 {
		return
	}
	s.dispatch(ctx, enriched)
}

func (s *Service) logScanError(stage string, err error) {
	if errors.Is(err, disc.ErrBackendUnavailable) {
		s.logger.Debug("scan skipped; disc tooling unavailable",
			logging.String("stage", stage),
			logging.Error(err),
		)
		return
	}
	logging.WarnWithContext(s.logger, "scan cycle failed", "scan_failed",
		logging.String("stage", stage),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check drive access and makemkvcon output; the next tick retries"),
		logging.String(logging.FieldImpact, "no discs were dispatched this cycle"),
	)
}

func titles(records []disc.Record) string {
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.String())
	}
	return strings.Join(names, ", ")
}
