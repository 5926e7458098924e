package availability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsched/medsched/pkg/calendar"
)

// HorizonEngine keeps a rolling window of future slots materialized:
// every interval it generates slots for each active shift out to the
// horizon and prunes stale unbooked slots past the retention cutoff.
type HorizonEngine struct {
	svc           *Service
	horizonDays   int
	retentionDays int
	interval      time.Duration
	log           zerolog.Logger
}

func NewHorizonEngine(svc *Service, horizonDays, retentionDays int, interval time.Duration, logger zerolog.Logger) *HorizonEngine {
	return &HorizonEngine{
		svc:           svc,
		horizonDays:   horizonDays,
		retentionDays: retentionDays,
		interval:      interval,
		log:           logger,
	}
}

// Start runs the engine until ctx is cancelled. One pass runs
// immediately; a failed pass is logged and retried on the next tick.
func (e *HorizonEngine) Start(ctx context.Context) {
	go func() {
		e.runOnce(ctx)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.log.Info().Msg("horizon engine stopped")
				return
			case <-ticker.C:
				e.runOnce(ctx)
			}
		}
	}()
}

func (e *HorizonEngine) runOnce(ctx context.Context) {
	generated, pruned, err := e.RunOnce(ctx, time.Now())
	if err != nil {
		e.log.Error().Err(err).Msg("horizon pass failed")
		return
	}
	e.log.Info().
		Int64("generated", generated).
		Int64("pruned", pruned).
		Int("horizon_days", e.horizonDays).
		Msg("horizon pass complete")
}

// RunOnce executes a single generate-and-prune pass anchored at now.
// Generation errors on one shift do not stop the others; the first
// error is returned after the pass finishes.
func (e *HorizonEngine) RunOnce(ctx context.Context, now time.Time) (generated, pruned int64, err error) {
	today := calendar.DateOnly(now)
	to := today.AddDate(0, 0, e.horizonDays-1)

	templates, terr := e.svc.shifts.ActiveTemplates(ctx)
	if terr != nil {
		return 0, 0, terr
	}
	var firstErr error
	for _, t := range templates {
		n, gerr := e.svc.GenerateSlots(ctx, t.ID, today, to, 0)
		if gerr != nil {
			e.log.Warn().Err(gerr).Str("shift_id", t.ID.String()).Msg("horizon generation failed for shift")
			if firstErr == nil {
				firstErr = gerr
			}
			continue
		}
		generated += n
	}

	if e.retentionDays >= 0 {
		cutoff := today.AddDate(0, 0, -e.retentionDays)
		pruned, err = e.svc.slots.DeleteUnbookedBefore(ctx, cutoff)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.log.Warn().Err(err).Msg("slot pruning failed")
		}
	}
	return generated, pruned, firstErr
}
