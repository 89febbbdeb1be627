package commands

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/ballot-engine/application"
	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/domain/tally"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// TallyUseCase closes a ballot: computes the pairwise ranking over every
// stored vote, persists the structured result, archives the canonical
// artifact write-once, and marks the ballot tallied.
type TallyUseCase struct {
	Ballots ports.BallotRepository
	Votes   ports.VoteRepository
	Results ports.ResultRepository
	Archive ports.ResultArchive
	Roster  ports.AttendeeRoster
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
	Metrics ports.MetricsRecorder
}

// Tally commits exactly once per ballot. It fails with ErrNotClosed while
// votes are still collectable or the extension check is unresolved,
// ErrEmptyBallot without candidates, and ErrAlreadyTallied once the tallied
// flag committed. The writes are ordered so a failure mid-way never bricks
// the ballot: the insert-only result save is the exclusion gate, archive
// publication tolerates an earlier partial attempt, and the tallied flag
// flips last. A retry after a transient failure therefore completes the
// remaining writes against the identical stored result.
func (uc TallyUseCase) Tally(ctx context.Context, ballotID string) (entities.TallyResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	ballot, err := uc.Ballots.GetBallot(ctx, strings.TrimSpace(ballotID))
	if err != nil {
		return entities.TallyResult{}, err
	}
	now := uc.now()

	switch ballot.PeriodAt(now) {
	case entities.PeriodTallied:
		return entities.TallyResult{}, domainerrors.ErrAlreadyTallied
	case entities.PeriodClosed:
	default:
		return entities.TallyResult{}, domainerrors.ErrNotClosed
	}

	candidates, err := uc.Ballots.ListCandidates(ctx, ballot.BallotID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	if len(candidates) == 0 {
		return entities.TallyResult{}, domainerrors.ErrEmptyBallot
	}

	// Freeze the quorum if no extension check ever ran for this ballot, so
	// the artifact records the headcount that was in force at closing.
	if ballot.Quorum == nil {
		required, err := uc.requiredQuorum(ctx, ballot, now)
		if err != nil {
			return entities.TallyResult{}, err
		}
		ballot, err = uc.Ballots.FreezeQuorum(ctx, ballot.BallotID, required, now)
		if err != nil {
			return entities.TallyResult{}, err
		}
	}

	votes, err := uc.Votes.ListVotes(ctx, ballot.BallotID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	result := BuildResult(ballot, candidates, votes)

	// The insert-only result save is the exclusion gate. A concurrent loser
	// or a retry after a partial failure lands on the stored result and
	// completes the remaining writes against it.
	if err := uc.Results.SaveResult(ctx, result); err != nil {
		if !errors.Is(err, domainerrors.ErrAlreadyTallied) {
			return entities.TallyResult{}, err
		}
		stored, found, getErr := uc.Results.GetResult(ctx, ballot.BallotID)
		if getErr != nil {
			return entities.TallyResult{}, getErr
		}
		if found {
			result = stored
		}
	}

	artifact, err := result.CanonicalJSON()
	if err != nil {
		return entities.TallyResult{}, err
	}
	if err := uc.Archive.Publish(ctx, ballot.BallotID, artifact); err != nil {
		if !errors.Is(err, domainerrors.ErrAlreadyPublished) {
			return entities.TallyResult{}, err
		}
	}

	// The tallied flag commits last; its single-shot semantics make the
	// losing concurrent caller fail here after all writes already landed.
	if err := uc.Ballots.MarkTallied(ctx, ballot.BallotID, now); err != nil {
		return entities.TallyResult{}, err
	}

	if err := uc.appendTallyEvent(ctx, result, now); err != nil {
		return entities.TallyResult{}, err
	}
	if uc.Metrics != nil {
		uc.Metrics.TallyCompleted(result.QuorumMet)
	}

	logger.Info("ballot tallied",
		"event", "ballot_tallied",
		"module", "assembly-governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"participants", result.Participants,
		"quorum", result.Quorum,
		"quorum_met", result.QuorumMet,
		"tier_count", len(result.Tiers),
	)
	return result, nil
}

// BuildResult derives the deterministic result from a fixed vote set. It is
// a pure function: candidate axis order comes from the stored positions (bar
// appended last), evidence ballots are sorted, and the ranking itself is
// iteration-order independent.
func BuildResult(
	ballot entities.Ballot,
	candidates []entities.Candidate,
	votes []entities.VoteRecord,
) entities.TallyResult {
	ordered := append([]entities.Candidate(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Position == ordered[j].Position {
			return ordered[i].Token < ordered[j].Token
		}
		return ordered[i].Position < ordered[j].Position
	})
	axis := make([]string, 0, len(ordered)+1)
	for _, candidate := range ordered {
		axis = append(axis, candidate.Token)
	}
	if ballot.UsesBar {
		axis = append(axis, entities.BarToken)
	}

	rankings := make([]entities.Ranking, 0, len(votes))
	evidence := make([]string, 0, len(votes))
	for _, vote := range votes {
		normalized := vote.Ranking.Normalize()
		rankings = append(rankings, normalized)
		evidence = append(evidence, normalized.String())
	}
	sort.Strings(evidence)

	tiers, pairwise := tally.Compute(axis, rankings)

	quorum := ballot.RequiredQuorum(0)
	return entities.TallyResult{
		BallotID:     ballot.BallotID,
		Candidates:   axis,
		Tiers:        tiers,
		Rejected:     entities.RejectedBelow(tiers),
		Participants: len(votes),
		Quorum:       quorum,
		QuorumMet:    len(votes) >= quorum,
		UsesBar:      ballot.UsesBar,
		Ballots:      evidence,
		Pairwise:     pairwise,
	}
}

func (uc TallyUseCase) requiredQuorum(ctx context.Context, ballot entities.Ballot, now time.Time) (int, error) {
	if !ballot.NeedsLiveAttendance() {
		return ballot.RequiredQuorum(0), nil
	}
	attendees, err := uc.Roster.AttendeeCount(ctx, ballot.AssemblyID, now)
	if err != nil {
		return 0, err
	}
	return ballot.RequiredQuorum(attendees), nil
}

func (uc TallyUseCase) appendTallyEvent(ctx context.Context, result entities.TallyResult, occurredAt time.Time) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newBallotEnvelope(eventID, "ballot.tallied", result.BallotID, occurredAt, map[string]any{
		"ballot_id":    result.BallotID,
		"participants": result.Participants,
		"quorum":       result.Quorum,
		"quorum_met":   result.QuorumMet,
		"tiers":        result.Tiers,
		"occurred_at":  occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc TallyUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
