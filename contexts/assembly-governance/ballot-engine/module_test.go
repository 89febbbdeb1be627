package ballotengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	ballotengine "agora/contexts/assembly-governance/ballot-engine"
	"agora/contexts/assembly-governance/ballot-engine/adapters/memory"
	"agora/contexts/assembly-governance/ballot-engine/application/commands"
	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 20, 18, 0, 0, 0, time.UTC)

func colorCandidates() []commands.CandidateInput {
	return []commands.CandidateInput{
		{Token: "rot", Title: "Rot"},
		{Token: "gelb", Title: "Gelb"},
		{Token: "gruen", Title: "Gruen"},
		{Token: "blau", Title: "Blau"},
	}
}

func newTestModule(t *testing.T) ballotengine.Module {
	t.Helper()
	module := ballotengine.NewInMemoryModule(nil)
	module.Store.SetNow(baseTime)
	module.Store.SetEligibleVoter("assembly-1", "voter-1", true)
	module.Store.SetEligibleVoter("assembly-1", "voter-2", true)
	module.Store.SetEligibleVoter("assembly-1", "voter-3", true)
	return module
}

func createColorBallot(t *testing.T, module ballotengine.Module, mutate func(*commands.CreateBallotCommand)) entities.Ballot {
	t.Helper()
	cmd := commands.CreateBallotCommand{
		AssemblyID: "assembly-1",
		Title:      "color of the year",
		VoteBegin:  baseTime.Add(-30 * time.Minute),
		VoteEnd:    baseTime.Add(time.Hour),
		Candidates: colorCandidates(),
	}
	if mutate != nil {
		mutate(&cmd)
	}
	ballot, err := module.Ballots.CreateBallot(context.Background(), cmd)
	require.NoError(t, err)
	return ballot
}

func TestCreateBallotQuorumValidation(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	base := commands.CreateBallotCommand{
		AssemblyID: "assembly-1",
		Title:      "quorum config",
		VoteBegin:  baseTime.Add(time.Hour),
		VoteEnd:    baseTime.Add(2 * time.Hour),
		Candidates: colorCandidates(),
	}

	fractional := base
	fractional.RelQuorum = 3.141
	_, err := module.Ballots.CreateBallot(ctx, fractional)
	require.ErrorIs(t, err, domainerrors.ErrPrecisionLoss)

	negative := base
	negative.RelQuorum = -5
	_, err = module.Ballots.CreateBallot(ctx, negative)
	require.ErrorIs(t, err, domainerrors.ErrOutOfRange)

	tooLarge := base
	tooLarge.RelQuorum = 168
	_, err = module.Ballots.CreateBallot(ctx, tooLarge)
	require.ErrorIs(t, err, domainerrors.ErrOutOfRange)

	conflicting := base
	conflicting.AbsQuorum = 5
	conflicting.RelQuorum = 50
	_, err = module.Ballots.CreateBallot(ctx, conflicting)
	require.ErrorIs(t, err, domainerrors.ErrQuorumConflict)
}

func TestAddCandidateOnlyBeforeVotingStarts(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	ballot := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.VoteBegin = baseTime.Add(time.Hour)
		cmd.VoteEnd = baseTime.Add(2 * time.Hour)
	})

	added, err := module.Ballots.AddCandidate(ctx, ballot.BallotID, commands.CandidateInput{Token: "lila", Title: "Lila"})
	require.NoError(t, err)
	require.Equal(t, 4, added.Position)

	_, err = module.Ballots.AddCandidate(ctx, ballot.BallotID, commands.CandidateInput{Token: "rot"})
	require.ErrorIs(t, err, domainerrors.ErrDuplicateCandidate)

	_, err = module.Ballots.AddCandidate(ctx, ballot.BallotID, commands.CandidateInput{Token: entities.BarToken})
	require.ErrorIs(t, err, domainerrors.ErrInvalidCandidate)

	started := createColorBallot(t, module, nil)
	_, err = module.Ballots.AddCandidate(ctx, started.BallotID, commands.CandidateInput{Token: "lila"})
	require.ErrorIs(t, err, domainerrors.ErrVotingStarted)
}

func TestCastVoteRoundTrip(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	ballot := createColorBallot(t, module, nil)

	first, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "blau>rot=gelb>gruen",
	})
	require.NoError(t, err)
	require.False(t, first.Revote)
	require.NotEmpty(t, first.Secret)
	require.Equal(t, "blau>gelb=rot>gruen", first.Ranking.String())

	ranking, found, err := module.Votes.GetMyVote(ctx, ballot.BallotID, "voter-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "blau>gelb=rot>gruen", ranking.String())

	bySecret, found, err := module.Votes.GetVoteBySecret(ctx, ballot.BallotID, first.Secret)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ranking, bySecret)

	second, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.NoError(t, err)
	require.True(t, second.Revote)
	require.Equal(t, first.Secret, second.Secret)

	participation, err := module.Votes.Participation(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.Equal(t, 1, participation)
}

func TestCastVoteRejections(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	ballot := createColorBallot(t, module, nil)

	_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: "no-such-ballot",
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.ErrorIs(t, err, domainerrors.ErrBallotNotFound)

	_, err = module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "stranger",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.ErrorIs(t, err, domainerrors.ErrNotEligible)

	_, err = module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen",
	})
	require.ErrorIs(t, err, domainerrors.ErrInvalidRanking)

	notStarted := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.VoteBegin = baseTime.Add(time.Hour)
		cmd.VoteEnd = baseTime.Add(2 * time.Hour)
	})
	_, err = module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: notStarted.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.ErrorIs(t, err, domainerrors.ErrBallotClosed)

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	_, err = module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.ErrorIs(t, err, domainerrors.ErrBallotClosed)
}

func TestExtensionGrantedWhenQuorumMissed(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	extensionEnd := baseTime.Add(2 * time.Hour)
	ballot := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.AbsQuorum = 2
		cmd.VoteExtensionEnd = &extensionEnd
	})

	_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.NoError(t, err)

	// Advisory before the primary window elapsed.
	early, err := module.Extension.CheckExtension(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.False(t, early.Resolved)
	require.Equal(t, entities.PeriodCollecting, early.State)

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	decision, err := module.Extension.CheckExtension(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.True(t, decision.Resolved)
	require.NotNil(t, decision.Extended)
	require.True(t, *decision.Extended)
	require.Equal(t, 2, decision.Quorum)
	require.Equal(t, entities.PeriodExtended, decision.State)

	// Second vote arrives inside the extension window.
	_, err = module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-2",
		Ranking:  "gelb>rot>gruen>blau",
	})
	require.NoError(t, err)

	// The decision is single-shot: quorum now reached, outcome unchanged.
	replay, err := module.Extension.CheckExtension(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.True(t, replay.Resolved)
	require.True(t, *replay.Extended)
	require.Equal(t, entities.PeriodExtended, replay.State)

	module.Store.SetNow(extensionEnd.Add(time.Minute))
	closed, err := module.Extension.CheckExtension(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.True(t, *closed.Extended)
	require.Equal(t, entities.PeriodClosed, closed.State)
}

func TestExtensionDeniedWhenQuorumMet(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	extensionEnd := baseTime.Add(2 * time.Hour)
	ballot := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.AbsQuorum = 2
		cmd.VoteExtensionEnd = &extensionEnd
	})

	for _, voter := range []string{"voter-1", "voter-2"} {
		_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
			BallotID: ballot.BallotID,
			VoterID:  voter,
			Ranking:  "rot>gelb>gruen>blau",
		})
		require.NoError(t, err)
	}

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	decision, err := module.Extension.CheckExtension(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.True(t, decision.Resolved)
	require.False(t, *decision.Extended)
	require.Equal(t, entities.PeriodClosed, decision.State)
}

func TestRelativeQuorumFreezesAgainstRoster(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	module.Store.SetAttendeeCount("assembly-1", 10)
	extensionEnd := baseTime.Add(2 * time.Hour)
	ballot := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.RelQuorum = 25
		cmd.VoteExtensionEnd = &extensionEnd
	})

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	decision, err := module.Extension.CheckExtension(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.True(t, decision.Resolved)
	// ceil(25% of 10) with zero votes: quorum missed, extension granted.
	require.Equal(t, 3, decision.Quorum)
	require.True(t, *decision.Extended)

	// Later attendance changes do not move the frozen headcount.
	module.Store.SetAttendeeCount("assembly-1", 100)
	required, err := module.Extension.Required(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.Equal(t, 3, required)
}

func TestTallyProducesDeterministicArtifact(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	ballot := createColorBallot(t, module, nil)

	votes := map[string]string{
		"voter-1": "rot>gelb=gruen>blau",
		"voter-2": "gelb>rot=gruen>blau",
		"voter-3": "blau>rot=gelb=gruen",
	}
	for voter, expr := range votes {
		_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
			BallotID: ballot.BallotID,
			VoterID:  voter,
			Ranking:  expr,
		})
		require.NoError(t, err)
	}

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	result, err := module.Tally.Tally(ctx, ballot.BallotID)
	require.NoError(t, err)

	require.Equal(t, [][]string{{"gelb", "rot"}, {"gruen"}, {"blau"}}, result.Tiers)
	require.Equal(t, []string{"rot", "gelb", "gruen", "blau"}, result.Candidates)
	require.Equal(t, 3, result.Participants)
	require.True(t, result.QuorumMet)
	require.Empty(t, result.Rejected)
	require.Len(t, result.Ballots, 3)

	artifact, err := module.Results.GetArtifact(ctx, ballot.BallotID)
	require.NoError(t, err)
	once, err := result.CanonicalJSON()
	require.NoError(t, err)
	twice, err := result.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, once, twice)
	require.Equal(t, once, artifact)

	stored, err := module.Results.GetResult(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.Equal(t, result, stored)

	_, err = module.Tally.Tally(ctx, ballot.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyTallied)
}

func TestTallyWithBarComputesRejectionSet(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	ballot := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.UsesBar = true
	})

	votes := map[string]string{
		"voter-1": "rot>_bar_>gelb=gruen=blau",
		"voter-2": "rot>_bar_>blau>gelb=gruen",
		"voter-3": "rot=gelb>_bar_>gruen=blau",
	}
	for voter, expr := range votes {
		_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
			BallotID: ballot.BallotID,
			VoterID:  voter,
			Ranking:  expr,
		})
		require.NoError(t, err)
	}

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	result, err := module.Tally.Tally(ctx, ballot.BallotID)
	require.NoError(t, err)

	require.True(t, result.UsesBar)
	require.Equal(t, []string{"rot", "gelb", "gruen", "blau", entities.BarToken}, result.Candidates)
	// rot beats the bar on every vote; every other candidate loses to it.
	require.Equal(t, []string{"rot"}, result.Tiers[0])
	require.ElementsMatch(t, []string{"gelb", "gruen", "blau"}, result.Rejected)
}

func TestTallyGuards(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	collecting := createColorBallot(t, module, nil)
	_, err := module.Tally.Tally(ctx, collecting.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrNotClosed)

	extensionEnd := baseTime.Add(2 * time.Hour)
	unresolved := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.AbsQuorum = 2
		cmd.VoteExtensionEnd = &extensionEnd
	})
	module.Store.SetNow(unresolved.VoteEnd.Add(time.Minute))
	// Quorum check pending: the tally refuses until the decision is recorded.
	_, err = module.Tally.Tally(ctx, unresolved.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrNotClosed)

	module.Store.SetNow(baseTime)
	empty := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.Candidates = nil
	})
	module.Store.SetNow(empty.VoteEnd.Add(time.Minute))
	_, err = module.Tally.Tally(ctx, empty.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrEmptyBallot)
}

func TestTallyRecordsMissedQuorum(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	ballot := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.AbsQuorum = 5
	})

	_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.NoError(t, err)

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	result, err := module.Tally.Tally(ctx, ballot.BallotID)
	require.NoError(t, err)

	// The outcome is still computed; quorum_met is policy input downstream.
	require.Equal(t, 5, result.Quorum)
	require.False(t, result.QuorumMet)
	require.Equal(t, 1, result.Participants)
	require.NotEmpty(t, result.Tiers)
}

type faultyArchive struct {
	inner ports.ResultArchive
	fail  bool
}

func (a *faultyArchive) Publish(ctx context.Context, ballotID string, artifact []byte) error {
	if a.fail {
		return errArchiveDown
	}
	return a.inner.Publish(ctx, ballotID, artifact)
}

func (a *faultyArchive) Fetch(ctx context.Context, ballotID string) ([]byte, bool, error) {
	return a.inner.Fetch(ctx, ballotID)
}

var errArchiveDown = errors.New("archive volume unavailable")

func TestTallyRetriesAfterArchiveFailure(t *testing.T) {
	store := memory.NewStore()
	archive := &faultyArchive{inner: store, fail: true}
	module := ballotengine.NewModule(ballotengine.Dependencies{
		Ballots: store,
		Secrets: store,
		Votes:   store,
		Results: store,
		Archive: archive,
		Roster:  store,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
		Tokens:  store,
	})
	module.Store = store
	module.Store.SetNow(baseTime)
	module.Store.SetEligibleVoter("assembly-1", "voter-1", true)
	ctx := context.Background()

	ballot := createColorBallot(t, module, nil)
	_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.NoError(t, err)

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	_, err = module.Tally.Tally(ctx, ballot.BallotID)
	require.ErrorIs(t, err, errArchiveDown)

	// The failed attempt must not have committed the tallied flag.
	stored, err := store.GetBallot(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.False(t, stored.Tallied)

	// Retry after the archive recovers completes the remaining writes.
	archive.fail = false
	result, err := module.Tally.Tally(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Participants)

	artifact, err := module.Results.GetArtifact(ctx, ballot.BallotID)
	require.NoError(t, err)
	expected, err := result.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, expected, artifact)

	_, err = module.Tally.Tally(ctx, ballot.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyTallied)
}

func TestResultQueriesBeforeTally(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	ballot := createColorBallot(t, module, nil)

	_, err := module.Results.GetResult(ctx, ballot.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrNotTallied)

	_, err = module.Results.GetArtifact(ctx, ballot.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrNotTallied)
}

func TestPeriodWatcherDrivesLifecycle(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	extensionEnd := baseTime.Add(2 * time.Hour)
	ballot := createColorBallot(t, module, func(cmd *commands.CreateBallotCommand) {
		cmd.AbsQuorum = 2
		cmd.VoteExtensionEnd = &extensionEnd
	})

	_, err := module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-1",
		Ranking:  "rot>gelb>gruen>blau",
	})
	require.NoError(t, err)

	module.Store.SetNow(ballot.VoteEnd.Add(time.Minute))
	require.NoError(t, module.Watcher.RunOnce(ctx))

	// Extension granted, ballot still open: no result yet.
	_, err = module.Results.GetResult(ctx, ballot.BallotID)
	require.ErrorIs(t, err, domainerrors.ErrNotTallied)

	_, err = module.Casting.CastVote(ctx, commands.CastVoteCommand{
		BallotID: ballot.BallotID,
		VoterID:  "voter-2",
		Ranking:  "gelb>rot>gruen>blau",
	})
	require.NoError(t, err)

	module.Store.SetNow(extensionEnd.Add(time.Minute))
	require.NoError(t, module.Watcher.RunOnce(ctx))

	result, err := module.Results.GetResult(ctx, ballot.BallotID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Participants)
	require.True(t, result.QuorumMet)

	// Redundant runs are harmless.
	require.NoError(t, module.Watcher.RunOnce(ctx))
}
