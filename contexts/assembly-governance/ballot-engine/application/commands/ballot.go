package commands

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/ballot-engine/application"
	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// CandidateInput is one option supplied at ballot creation.
type CandidateInput struct {
	Token string
	Title string
}

// CreateBallotCommand configures a new ballot. RelQuorum is taken as the raw
// requested percentage so that fractional input can be rejected with
// ErrPrecisionLoss instead of being silently truncated to the stored integer.
type CreateBallotCommand struct {
	AssemblyID       string
	Title            string
	Description      string
	Notes            string
	VoteBegin        time.Time
	VoteEnd          time.Time
	VoteExtensionEnd *time.Time
	UsesBar          bool
	AbsQuorum        int
	RelQuorum        float64
	Candidates       []CandidateInput
}

// BallotUseCase owns ballot configuration. All quorum/window validation
// happens here, synchronously, before anything is persisted.
type BallotUseCase struct {
	Ballots ports.BallotRepository
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

// CreateBallot validates the configuration and persists the ballot with its
// initial candidate set.
func (uc BallotUseCase) CreateBallot(ctx context.Context, cmd CreateBallotCommand) (entities.Ballot, error) {
	logger := application.ResolveLogger(uc.Logger)

	relQuorum, err := integerPercentage(cmd.RelQuorum)
	if err != nil {
		logger.Warn("ballot create rejected bad relative quorum",
			"event", "ballot_create_quorum_rejected",
			"module", "assembly-governance/ballot-engine",
			"layer", "application",
			"assembly_id", strings.TrimSpace(cmd.AssemblyID),
			"rel_quorum", cmd.RelQuorum,
			"error", err.Error(),
		)
		return entities.Ballot{}, err
	}

	now := uc.now()
	ballotID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Ballot{}, err
	}
	ballot := entities.Ballot{
		BallotID:         ballotID,
		AssemblyID:       strings.TrimSpace(cmd.AssemblyID),
		Title:            strings.TrimSpace(cmd.Title),
		Description:      strings.TrimSpace(cmd.Description),
		Notes:            strings.TrimSpace(cmd.Notes),
		VoteBegin:        cmd.VoteBegin.UTC(),
		VoteEnd:          cmd.VoteEnd.UTC(),
		VoteExtensionEnd: normalizeOptionalTime(cmd.VoteExtensionEnd),
		UsesBar:          cmd.UsesBar,
		AbsQuorum:        cmd.AbsQuorum,
		RelQuorum:        relQuorum,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := ballot.ValidateConfig(); err != nil {
		return entities.Ballot{}, err
	}

	candidates, err := buildCandidates(ballot.BallotID, cmd.Candidates, now)
	if err != nil {
		return entities.Ballot{}, err
	}

	if err := uc.Ballots.SaveBallot(ctx, ballot); err != nil {
		return entities.Ballot{}, err
	}
	for _, candidate := range candidates {
		if err := uc.Ballots.SaveCandidate(ctx, candidate); err != nil {
			return entities.Ballot{}, err
		}
	}

	logger.Info("ballot created",
		"event", "ballot_created",
		"module", "assembly-governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"assembly_id", ballot.AssemblyID,
		"uses_bar", ballot.UsesBar,
		"abs_quorum", ballot.AbsQuorum,
		"rel_quorum", ballot.RelQuorum,
		"candidate_count", len(candidates),
	)
	return ballot, nil
}

// AddCandidate appends one option to a ballot that has not started collecting.
func (uc BallotUseCase) AddCandidate(ctx context.Context, ballotID string, input CandidateInput) (entities.Candidate, error) {
	ballot, err := uc.Ballots.GetBallot(ctx, strings.TrimSpace(ballotID))
	if err != nil {
		return entities.Candidate{}, err
	}
	now := uc.now()
	if !now.Before(ballot.VoteBegin) {
		return entities.Candidate{}, domainerrors.ErrVotingStarted
	}

	token := strings.TrimSpace(input.Token)
	if token == "" || token == entities.BarToken || strings.ContainsAny(token, ">=") {
		return entities.Candidate{}, domainerrors.ErrInvalidCandidate
	}
	existing, err := uc.Ballots.ListCandidates(ctx, ballot.BallotID)
	if err != nil {
		return entities.Candidate{}, err
	}
	for _, candidate := range existing {
		if candidate.Token == token {
			return entities.Candidate{}, domainerrors.ErrDuplicateCandidate
		}
	}

	candidate := entities.Candidate{
		BallotID:  ballot.BallotID,
		Token:     token,
		Title:     strings.TrimSpace(input.Title),
		Position:  len(existing),
		CreatedAt: now,
	}
	if err := uc.Ballots.SaveCandidate(ctx, candidate); err != nil {
		return entities.Candidate{}, err
	}
	return candidate, nil
}

// UpdateQuorum replaces the quorum configuration before voting begins.
func (uc BallotUseCase) UpdateQuorum(ctx context.Context, ballotID string, absQuorum int, relQuorum float64) (entities.Ballot, error) {
	ballot, err := uc.Ballots.GetBallot(ctx, strings.TrimSpace(ballotID))
	if err != nil {
		return entities.Ballot{}, err
	}
	now := uc.now()
	if !now.Before(ballot.VoteBegin) {
		return entities.Ballot{}, domainerrors.ErrVotingStarted
	}

	rel, err := integerPercentage(relQuorum)
	if err != nil {
		return entities.Ballot{}, err
	}
	ballot.AbsQuorum = absQuorum
	ballot.RelQuorum = rel
	ballot.UpdatedAt = now
	if err := ballot.ValidateConfig(); err != nil {
		return entities.Ballot{}, err
	}
	if err := uc.Ballots.SaveBallot(ctx, ballot); err != nil {
		return entities.Ballot{}, err
	}
	return ballot, nil
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

// integerPercentage rejects fractional percentages (the stored representation
// is integer precision) and range violations.
func integerPercentage(raw float64) (int, error) {
	if raw != math.Trunc(raw) {
		return 0, domainerrors.ErrPrecisionLoss
	}
	if raw < 0 || raw > 100 {
		return 0, domainerrors.ErrOutOfRange
	}
	return int(raw), nil
}

func buildCandidates(ballotID string, inputs []CandidateInput, now time.Time) ([]entities.Candidate, error) {
	seen := make(map[string]struct{}, len(inputs))
	candidates := make([]entities.Candidate, 0, len(inputs))
	for position, input := range inputs {
		token := strings.TrimSpace(input.Token)
		if token == "" || token == entities.BarToken || strings.ContainsAny(token, ">=") {
			return nil, domainerrors.ErrInvalidCandidate
		}
		if _, dup := seen[token]; dup {
			return nil, domainerrors.ErrDuplicateCandidate
		}
		seen[token] = struct{}{}
		candidates = append(candidates, entities.Candidate{
			BallotID:  ballotID,
			Token:     token,
			Title:     strings.TrimSpace(input.Title),
			Position:  position,
			CreatedAt: now,
		})
	}
	return candidates, nil
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
