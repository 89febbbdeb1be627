package queries

import (
	"context"
	"strings"

	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// ResultQueryUseCase serves the read-only re-derivation of a stored outcome.
type ResultQueryUseCase struct {
	Results ports.ResultRepository
	Archive ports.ResultArchive
}

// GetResult returns the structured tally outcome. ErrNotTallied before the
// tally committed.
func (uc ResultQueryUseCase) GetResult(ctx context.Context, ballotID string) (entities.TallyResult, error) {
	result, found, err := uc.Results.GetResult(ctx, strings.TrimSpace(ballotID))
	if err != nil {
		return entities.TallyResult{}, err
	}
	if !found {
		return entities.TallyResult{}, domainerrors.ErrNotTallied
	}
	return result, nil
}

// GetArtifact returns the archived canonical byte artifact for independent
// audit; third parties recompute the ranking from its embedded ballots.
func (uc ResultQueryUseCase) GetArtifact(ctx context.Context, ballotID string) ([]byte, error) {
	artifact, found, err := uc.Archive.Fetch(ctx, strings.TrimSpace(ballotID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainerrors.ErrNotTallied
	}
	return artifact, nil
}
