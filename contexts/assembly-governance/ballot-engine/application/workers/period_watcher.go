package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "agora/contexts/assembly-governance/ballot-engine/application"
	"agora/contexts/assembly-governance/ballot-engine/application/commands"
	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// PeriodWatcher drives the wall-clock transitions the core itself never
// schedules: it resolves extension checks once primary windows elapse and
// tallies ballots whose period is over. Safe to run redundantly; every
// underlying operation is a single-shot idempotent command.
type PeriodWatcher struct {
	Ballots   ports.BallotRepository
	Extension commands.ExtensionUseCase
	Tally     commands.TallyUseCase
	Clock     ports.Clock
	Logger    *slog.Logger
}

// RunOnce scans due ballots and advances each as far as the clock allows.
// It continues past per-ballot failures so one broken ballot cannot stall
// the rest of the assembly.
func (w PeriodWatcher) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	now := time.Now().UTC()
	if w.Clock != nil {
		now = w.Clock.Now().UTC()
	}

	due, err := w.Ballots.ListDueBallots(ctx, now)
	if err != nil {
		logger.Error("period watcher list failed",
			"event", "ballot_watcher_list_failed",
			"module", "assembly-governance/ballot-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	var firstErr error
	for _, ballot := range due {
		decision, err := w.Extension.CheckExtension(ctx, ballot.BallotID)
		if err != nil {
			logger.Error("period watcher extension check failed",
				"event", "ballot_watcher_extension_failed",
				"module", "assembly-governance/ballot-engine",
				"layer", "worker",
				"ballot_id", ballot.BallotID,
				"error", err.Error(),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if decision.State != entities.PeriodClosed {
			continue
		}
		if _, err := w.Tally.Tally(ctx, ballot.BallotID); err != nil {
			if errors.Is(err, domainerrors.ErrAlreadyTallied) || errors.Is(err, domainerrors.ErrNotClosed) {
				continue
			}
			logger.Error("period watcher tally failed",
				"event", "ballot_watcher_tally_failed",
				"module", "assembly-governance/ballot-engine",
				"layer", "worker",
				"ballot_id", ballot.BallotID,
				"error", err.Error(),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
