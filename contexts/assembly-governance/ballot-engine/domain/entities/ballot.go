package entities

import (
	"math"
	"strings"
	"time"

	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
)

// PeriodState is the lifecycle position of a ballot relative to a wall-clock
// instant and the recorded extension decision.
type PeriodState string

const (
	PeriodCollecting  PeriodState = "collecting"
	PeriodQuorumCheck PeriodState = "quorum_check"
	PeriodExtended    PeriodState = "extended"
	PeriodClosed      PeriodState = "closed"
	PeriodTallied     PeriodState = "tallied"
)

// Ballot is one vote-able question inside an assembly. Quorum holds the
// resolved absolute headcount once the extension check froze it; Extended is
// nil until that check ran for a ballot that carries an extension window.
type Ballot struct {
	BallotID         string
	AssemblyID       string
	Title            string
	Description      string
	Notes            string
	VoteBegin        time.Time
	VoteEnd          time.Time
	VoteExtensionEnd *time.Time
	UsesBar          bool
	AbsQuorum        int
	RelQuorum        int
	Quorum           *int
	Extended         *bool
	Tallied          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidateConfig enforces the configuration invariants that must hold before a
// ballot starts collecting: window ordering, one quorum source at most, and
// extension windows only on ballots with a positive quorum.
func (b Ballot) ValidateConfig() error {
	if strings.TrimSpace(b.AssemblyID) == "" || strings.TrimSpace(b.Title) == "" {
		return domainerrors.ErrInvalidPeriod
	}
	if !b.VoteBegin.Before(b.VoteEnd) {
		return domainerrors.ErrInvalidPeriod
	}
	if b.VoteExtensionEnd != nil && !b.VoteEnd.Before(*b.VoteExtensionEnd) {
		return domainerrors.ErrInvalidPeriod
	}
	if b.AbsQuorum < 0 {
		return domainerrors.ErrOutOfRange
	}
	if b.RelQuorum < 0 || b.RelQuorum > 100 {
		return domainerrors.ErrOutOfRange
	}
	if b.AbsQuorum > 0 && b.RelQuorum > 0 {
		return domainerrors.ErrQuorumConflict
	}
	if b.VoteExtensionEnd != nil && b.AbsQuorum == 0 && b.RelQuorum == 0 {
		return domainerrors.ErrExtensionNeedsQuorum
	}
	return nil
}

// PeriodAt derives the state machine position. The extension decision is read
// from Extended, never recomputed from timestamps, so a resolved ballot keeps
// reporting the same outcome regardless of later attendance changes.
func (b Ballot) PeriodAt(now time.Time) PeriodState {
	if b.Tallied {
		return PeriodTallied
	}
	if now.Before(b.VoteEnd) {
		return PeriodCollecting
	}
	if b.Extended != nil {
		if *b.Extended && b.VoteExtensionEnd != nil && now.Before(*b.VoteExtensionEnd) {
			return PeriodExtended
		}
		return PeriodClosed
	}
	if b.VoteExtensionEnd == nil {
		return PeriodClosed
	}
	return PeriodQuorumCheck
}

// Votable reports whether a vote may be cast at the given instant. Collecting
// starts at VoteBegin; the pre-begin stretch is not votable even though the
// state machine already reports collecting.
func (b Ballot) Votable(now time.Time) bool {
	if now.Before(b.VoteBegin) {
		return false
	}
	switch b.PeriodAt(now) {
	case PeriodCollecting, PeriodExtended:
		return true
	default:
		return false
	}
}

// RequiredQuorum resolves the effective quorum headcount. The frozen value
// wins once set; a relative quorum rounds up against the live attendee count.
func (b Ballot) RequiredQuorum(attendees int) int {
	if b.Quorum != nil {
		return *b.Quorum
	}
	if b.AbsQuorum > 0 {
		return b.AbsQuorum
	}
	if b.RelQuorum > 0 {
		return int(math.Ceil(float64(b.RelQuorum) * float64(attendees) / 100))
	}
	return 0
}

// NeedsLiveAttendance reports whether RequiredQuorum depends on the roster.
func (b Ballot) NeedsLiveAttendance() bool {
	return b.Quorum == nil && b.AbsQuorum == 0 && b.RelQuorum > 0
}

// Candidate is one selectable option of a ballot. Position fixes the
// canonical candidate order used by deterministic tallying.
type Candidate struct {
	BallotID  string
	Token     string
	Title     string
	Position  int
	CreatedAt time.Time
}

// VoteRecord is the current vote of one secret on one ballot. The secret is
// the only key; no voter identifier is stored alongside the ranking.
type VoteRecord struct {
	BallotID  string
	Secret    string
	Ranking   Ranking
	CastAt    time.Time
	UpdatedAt time.Time
}

// SecretRecord maps (ballot, voter) to the issued secret. The mapping exists
// so a voter can retrieve or change their own vote; the tally path never
// consults it.
type SecretRecord struct {
	BallotID string
	VoterID  string
	Secret   string
	IssuedAt time.Time
}
