package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/ballot-engine/application"
	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// ExtensionDecision reports the outcome of a quorum/extension check.
// Resolved is false while the primary window is still open; afterwards
// Extended carries the recorded tri-state decision (nil for ballots without
// an extension mechanism) and Quorum the frozen headcount.
type ExtensionDecision struct {
	Resolved bool
	Extended *bool
	Quorum   int
	State    entities.PeriodState
}

// ExtensionUseCase owns the single-shot extension check. The decision
// commits at most once per ballot; every later call, including concurrent
// losers, observes the stored outcome without recomputation.
type ExtensionUseCase struct {
	Ballots ports.BallotRepository
	Votes   ports.VoteRepository
	Roster  ports.AttendeeRoster
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
	Metrics ports.MetricsRecorder
}

// Required resolves the effective quorum headcount at this instant. Frozen
// values win; a live relative quorum tracks the roster's attendee count.
func (uc ExtensionUseCase) Required(ctx context.Context, ballotID string) (int, error) {
	ballot, err := uc.Ballots.GetBallot(ctx, strings.TrimSpace(ballotID))
	if err != nil {
		return 0, err
	}
	return uc.requiredQuorum(ctx, ballot, uc.now())
}

// CheckExtension runs the quorum check once the primary window elapsed. It is
// advisory and idempotent: before VoteEnd it reports Resolved=false, after
// the first resolution it replays the stored decision.
func (uc ExtensionUseCase) CheckExtension(ctx context.Context, ballotID string) (ExtensionDecision, error) {
	logger := application.ResolveLogger(uc.Logger)

	ballot, err := uc.Ballots.GetBallot(ctx, strings.TrimSpace(ballotID))
	if err != nil {
		return ExtensionDecision{}, err
	}
	now := uc.now()

	if ballot.Extended != nil {
		return uc.storedDecision(ballot, now), nil
	}
	if now.Before(ballot.VoteEnd) {
		return ExtensionDecision{State: ballot.PeriodAt(now)}, nil
	}

	if ballot.VoteExtensionEnd == nil {
		// No extension mechanism: the ballot closes at VoteEnd with the
		// decision left unset. The quorum still freezes so the tally and any
		// later check agree on one headcount.
		required, err := uc.requiredQuorum(ctx, ballot, now)
		if err != nil {
			return ExtensionDecision{}, err
		}
		ballot, err = uc.Ballots.FreezeQuorum(ctx, ballot.BallotID, required, now)
		if err != nil {
			return ExtensionDecision{}, err
		}
		return uc.storedDecision(ballot, now), nil
	}

	required, err := uc.requiredQuorum(ctx, ballot, now)
	if err != nil {
		return ExtensionDecision{}, err
	}
	participants, err := uc.Votes.CountVotes(ctx, ballot.BallotID)
	if err != nil {
		return ExtensionDecision{}, err
	}
	extended := participants < required

	resolved, committed, err := uc.Ballots.ResolveExtension(ctx, ballot.BallotID, required, extended, now)
	if err != nil {
		return ExtensionDecision{}, err
	}
	if committed {
		if err := uc.appendExtensionEvent(ctx, resolved, participants, now); err != nil {
			return ExtensionDecision{}, err
		}
		if uc.Metrics != nil {
			uc.Metrics.ExtensionResolved(extended)
		}
		logger.Info("extension check resolved",
			"event", "ballot_extension_resolved",
			"module", "assembly-governance/ballot-engine",
			"layer", "application",
			"ballot_id", resolved.BallotID,
			"participants", participants,
			"quorum", required,
			"extended", extended,
		)
	}
	return uc.storedDecision(resolved, now), nil
}

func (uc ExtensionUseCase) storedDecision(ballot entities.Ballot, now time.Time) ExtensionDecision {
	decision := ExtensionDecision{
		Resolved: true,
		Extended: ballot.Extended,
		State:    ballot.PeriodAt(now),
	}
	if ballot.Quorum != nil {
		decision.Quorum = *ballot.Quorum
	}
	return decision
}

func (uc ExtensionUseCase) requiredQuorum(ctx context.Context, ballot entities.Ballot, now time.Time) (int, error) {
	if !ballot.NeedsLiveAttendance() {
		return ballot.RequiredQuorum(0), nil
	}
	attendees, err := uc.Roster.AttendeeCount(ctx, ballot.AssemblyID, now)
	if err != nil {
		return 0, err
	}
	return ballot.RequiredQuorum(attendees), nil
}

func (uc ExtensionUseCase) appendExtensionEvent(
	ctx context.Context,
	ballot entities.Ballot,
	participants int,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	quorum := 0
	if ballot.Quorum != nil {
		quorum = *ballot.Quorum
	}
	extended := false
	if ballot.Extended != nil {
		extended = *ballot.Extended
	}
	envelope, err := newBallotEnvelope(eventID, "ballot.extension_resolved", ballot.BallotID, occurredAt, map[string]any{
		"ballot_id":    ballot.BallotID,
		"participants": participants,
		"quorum":       quorum,
		"extended":     extended,
		"occurred_at":  occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc ExtensionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
