package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/ballot-engine/application"
	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// CastVoteCommand submits a ranking for one voter on one ballot. Ranking is
// the wire expression, e.g. "2>3>_bar_>1=4".
type CastVoteCommand struct {
	BallotID string
	VoterID  string
	Ranking  string
}

// CastVoteResult reports the secret owning the stored vote and the normalized
// ranking. Revote marks an overwrite of a previous record.
type CastVoteResult struct {
	Secret  string
	Ranking entities.Ranking
	Revote  bool
}

// CastUseCase orchestrates the anonymity indirection: voters are checked
// against the roster and exchanged for a per-ballot secret, and only the
// secret ever reaches the vote store.
type CastUseCase struct {
	Ballots ports.BallotRepository
	Secrets ports.SecretRepository
	Votes   ports.VoteRepository
	Roster  ports.AttendeeRoster
	Tokens  ports.SecretSource
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
	Metrics ports.MetricsRecorder
}

// IssueOrGetSecret returns the voter's per-ballot secret, generating and
// storing it on first contact. Fails with ErrNotEligible when the roster does
// not list the voter for the owning assembly.
func (uc CastUseCase) IssueOrGetSecret(ctx context.Context, ballot entities.Ballot, voterID string) (string, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return "", domainerrors.ErrNotEligible
	}
	eligible, err := uc.Roster.IsEligible(ctx, ballot.AssemblyID, voterID)
	if err != nil {
		return "", err
	}
	if !eligible {
		return "", domainerrors.ErrNotEligible
	}

	if record, found, err := uc.Secrets.GetSecretByVoter(ctx, ballot.BallotID, voterID); err != nil {
		return "", err
	} else if found {
		return record.Secret, nil
	}

	secret, err := uc.Tokens.NewSecret(ctx)
	if err != nil {
		return "", err
	}
	err = uc.Secrets.SaveSecret(ctx, entities.SecretRecord{
		BallotID: ballot.BallotID,
		VoterID:  voterID,
		Secret:   secret,
		IssuedAt: uc.now(),
	})
	if errors.Is(err, domainerrors.ErrConflict) {
		// Lost the first-issue race; the stored token is authoritative.
		record, found, getErr := uc.Secrets.GetSecretByVoter(ctx, ballot.BallotID, voterID)
		if getErr != nil {
			return "", getErr
		}
		if !found {
			return "", err
		}
		return record.Secret, nil
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}

// CastVote validates the ranking against the live candidate set and upserts
// the vote record under the voter's secret. Re-casting overwrites in place.
func (uc CastUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	ballot, err := uc.Ballots.GetBallot(ctx, strings.TrimSpace(cmd.BallotID))
	if err != nil {
		return CastVoteResult{}, err
	}
	now := uc.now()
	if !ballot.Votable(now) {
		logger.Warn("vote rejected outside collection window",
			"event", "ballot_vote_rejected_closed",
			"module", "assembly-governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"period", string(ballot.PeriodAt(now)),
		)
		return CastVoteResult{}, domainerrors.ErrBallotClosed
	}

	ranking, err := ParseAndValidateRanking(ctx, uc.Ballots, ballot, cmd.Ranking)
	if err != nil {
		return CastVoteResult{}, err
	}

	secret, err := uc.IssueOrGetSecret(ctx, ballot, cmd.VoterID)
	if err != nil {
		return CastVoteResult{}, err
	}

	_, revote, err := uc.Votes.GetVote(ctx, ballot.BallotID, secret)
	if err != nil {
		return CastVoteResult{}, err
	}
	record := entities.VoteRecord{
		BallotID:  ballot.BallotID,
		Secret:    secret,
		Ranking:   ranking,
		CastAt:    now,
		UpdatedAt: now,
	}
	if err := uc.Votes.UpsertVote(ctx, record); err != nil {
		return CastVoteResult{}, err
	}

	if err := uc.appendBallotEvent(ctx, "ballot.vote_cast", ballot.BallotID, now, map[string]any{
		"revote": revote,
	}); err != nil {
		return CastVoteResult{}, err
	}
	if uc.Metrics != nil {
		uc.Metrics.VoteCast(revote)
	}

	// Deliberately no voter id in this log line; the ballot id and the fact a
	// vote arrived are the only auditable facts on the cast path.
	logger.Info("vote stored",
		"event", "ballot_vote_stored",
		"module", "assembly-governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"revote", revote,
	)
	return CastVoteResult{Secret: secret, Ranking: ranking, Revote: revote}, nil
}

// ParseAndValidateRanking decodes the wire expression and checks completeness
// against the ballot's candidate set, returning the normalized ranking.
func ParseAndValidateRanking(
	ctx context.Context,
	ballots ports.BallotRepository,
	ballot entities.Ballot,
	expression string,
) (entities.Ranking, error) {
	ranking, err := entities.ParseRanking(expression)
	if err != nil {
		return nil, err
	}
	candidates, err := ballots.ListCandidates(ctx, ballot.BallotID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		tokens = append(tokens, candidate.Token)
	}
	if err := ranking.ValidateAgainst(tokens, ballot.UsesBar); err != nil {
		return nil, err
	}
	return ranking.Normalize(), nil
}

func (uc CastUseCase) appendBallotEvent(
	ctx context.Context,
	eventType string,
	ballotID string,
	occurredAt time.Time,
	data map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"ballot_id":   ballotID,
		"occurred_at": occurredAt.Format(time.RFC3339),
	}
	for key, value := range data {
		payload[key] = value
	}
	envelope, err := newBallotEnvelope(eventID, eventType, ballotID, occurredAt, payload)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc CastUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
