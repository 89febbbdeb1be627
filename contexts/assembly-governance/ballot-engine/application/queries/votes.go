package queries

import (
	"context"
	"strings"

	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// VoteQueryUseCase serves voter-facing reads. Lookups go voter -> secret ->
// record; the reverse direction is never exercised.
type VoteQueryUseCase struct {
	Secrets ports.SecretRepository
	Votes   ports.VoteRepository
}

// GetMyVote returns the voter's current normalized ranking, or found=false
// when the voter never cast (or was never issued a secret).
func (uc VoteQueryUseCase) GetMyVote(ctx context.Context, ballotID string, voterID string) (entities.Ranking, bool, error) {
	record, found, err := uc.Secrets.GetSecretByVoter(ctx, strings.TrimSpace(ballotID), strings.TrimSpace(voterID))
	if err != nil || !found {
		return nil, false, err
	}
	vote, found, err := uc.Votes.GetVote(ctx, record.BallotID, record.Secret)
	if err != nil || !found {
		return nil, false, err
	}
	return vote.Ranking, true, nil
}

// GetVoteBySecret returns the current ranking stored under a secret. This is
// the verification path for a voter holding only their token.
func (uc VoteQueryUseCase) GetVoteBySecret(ctx context.Context, ballotID string, secret string) (entities.Ranking, bool, error) {
	vote, found, err := uc.Votes.GetVote(ctx, strings.TrimSpace(ballotID), strings.TrimSpace(secret))
	if err != nil || !found {
		return nil, false, err
	}
	return vote.Ranking, true, nil
}

// Participation counts the distinct secrets holding a current vote.
func (uc VoteQueryUseCase) Participation(ctx context.Context, ballotID string) (int, error) {
	return uc.Votes.CountVotes(ctx, strings.TrimSpace(ballotID))
}
