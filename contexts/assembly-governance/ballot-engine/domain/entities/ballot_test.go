package entities

import (
	"testing"
	"time"

	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"

	"github.com/stretchr/testify/require"
)

func validBallot() Ballot {
	begin := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	return Ballot{
		BallotID:   "ballot-1",
		AssemblyID: "assembly-1",
		Title:      "board election",
		VoteBegin:  begin,
		VoteEnd:    begin.Add(2 * time.Hour),
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validBallot().ValidateConfig())

	inverted := validBallot()
	inverted.VoteEnd = inverted.VoteBegin.Add(-time.Minute)
	require.ErrorIs(t, inverted.ValidateConfig(), domainerrors.ErrInvalidPeriod)

	extBeforeEnd := validBallot()
	extEnd := extBeforeEnd.VoteEnd.Add(-time.Minute)
	extBeforeEnd.VoteExtensionEnd = &extEnd
	require.ErrorIs(t, extBeforeEnd.ValidateConfig(), domainerrors.ErrInvalidPeriod)

	bothQuorums := validBallot()
	bothQuorums.AbsQuorum = 5
	bothQuorums.RelQuorum = 50
	require.ErrorIs(t, bothQuorums.ValidateConfig(), domainerrors.ErrQuorumConflict)

	negative := validBallot()
	negative.AbsQuorum = -1
	require.ErrorIs(t, negative.ValidateConfig(), domainerrors.ErrOutOfRange)

	overRange := validBallot()
	overRange.RelQuorum = 168
	require.ErrorIs(t, overRange.ValidateConfig(), domainerrors.ErrOutOfRange)

	extWithoutQuorum := validBallot()
	later := extWithoutQuorum.VoteEnd.Add(time.Hour)
	extWithoutQuorum.VoteExtensionEnd = &later
	require.ErrorIs(t, extWithoutQuorum.ValidateConfig(), domainerrors.ErrExtensionNeedsQuorum)

	extWithQuorum := extWithoutQuorum
	extWithQuorum.AbsQuorum = 3
	require.NoError(t, extWithQuorum.ValidateConfig())
}

func TestPeriodAtStateMachine(t *testing.T) {
	ballot := validBallot()
	ballot.AbsQuorum = 2
	extEnd := ballot.VoteEnd.Add(time.Hour)
	ballot.VoteExtensionEnd = &extEnd

	require.Equal(t, PeriodCollecting, ballot.PeriodAt(ballot.VoteBegin.Add(time.Minute)))
	// Primary window elapsed, decision not recorded yet.
	require.Equal(t, PeriodQuorumCheck, ballot.PeriodAt(ballot.VoteEnd.Add(time.Minute)))

	extended := true
	ballot.Extended = &extended
	require.Equal(t, PeriodExtended, ballot.PeriodAt(ballot.VoteEnd.Add(time.Minute)))
	require.Equal(t, PeriodClosed, ballot.PeriodAt(extEnd.Add(time.Minute)))

	notExtended := false
	ballot.Extended = &notExtended
	require.Equal(t, PeriodClosed, ballot.PeriodAt(ballot.VoteEnd.Add(time.Minute)))

	ballot.Tallied = true
	require.Equal(t, PeriodTallied, ballot.PeriodAt(ballot.VoteEnd.Add(time.Minute)))
}

func TestPeriodAtWithoutExtensionWindowClosesAtVoteEnd(t *testing.T) {
	ballot := validBallot()
	require.Equal(t, PeriodCollecting, ballot.PeriodAt(ballot.VoteEnd.Add(-time.Second)))
	require.Equal(t, PeriodClosed, ballot.PeriodAt(ballot.VoteEnd))
}

func TestVotableExcludesPreBeginStretch(t *testing.T) {
	ballot := validBallot()
	require.False(t, ballot.Votable(ballot.VoteBegin.Add(-time.Minute)))
	require.True(t, ballot.Votable(ballot.VoteBegin))
	require.True(t, ballot.Votable(ballot.VoteEnd.Add(-time.Second)))
	require.False(t, ballot.Votable(ballot.VoteEnd))
}

func TestRequiredQuorum(t *testing.T) {
	absolute := validBallot()
	absolute.AbsQuorum = 7
	require.Equal(t, 7, absolute.RequiredQuorum(100))
	require.False(t, absolute.NeedsLiveAttendance())

	relative := validBallot()
	relative.RelQuorum = 25
	require.True(t, relative.NeedsLiveAttendance())
	// 25% of 10 attendees rounds up.
	require.Equal(t, 3, relative.RequiredQuorum(10))
	require.Equal(t, 0, relative.RequiredQuorum(0))

	frozen := relative
	quorum := 4
	frozen.Quorum = &quorum
	require.False(t, frozen.NeedsLiveAttendance())
	require.Equal(t, 4, frozen.RequiredQuorum(1000))

	unconfigured := validBallot()
	require.Equal(t, 0, unconfigured.RequiredQuorum(50))
}
