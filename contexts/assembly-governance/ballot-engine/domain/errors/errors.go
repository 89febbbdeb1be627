package errors

import "errors"

var (
	ErrBallotNotFound       = errors.New("ballot not found")
	ErrNotEligible          = errors.New("voter is not an attendee of the assembly")
	ErrBallotClosed         = errors.New("ballot is not collecting votes")
	ErrInvalidRanking       = errors.New("invalid ranking expression")
	ErrOutOfRange           = errors.New("relative quorum is outside 0-100")
	ErrPrecisionLoss        = errors.New("relative quorum requires sub-integer precision")
	ErrQuorumConflict       = errors.New("absolute and relative quorum are both set")
	ErrExtensionNeedsQuorum = errors.New("extension end requires a positive quorum")
	ErrInvalidPeriod        = errors.New("invalid voting period configuration")
	ErrInvalidCandidate     = errors.New("invalid candidate")
	ErrDuplicateCandidate   = errors.New("candidate token already exists on ballot")
	ErrVotingStarted        = errors.New("ballot configuration is frozen after voting began")
	ErrNotClosed            = errors.New("ballot voting period is not over")
	ErrAlreadyTallied       = errors.New("ballot is already tallied")
	ErrAlreadyPublished     = errors.New("ballot result is already published")
	ErrNotTallied           = errors.New("ballot is not tallied")
	ErrEmptyBallot          = errors.New("ballot has no candidates")
	ErrConflict             = errors.New("conflicting concurrent write")
)
