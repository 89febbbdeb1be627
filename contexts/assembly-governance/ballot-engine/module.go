package ballotengine

import (
	"log/slog"

	"agora/contexts/assembly-governance/ballot-engine/adapters/memory"
	"agora/contexts/assembly-governance/ballot-engine/application/commands"
	"agora/contexts/assembly-governance/ballot-engine/application/queries"
	"agora/contexts/assembly-governance/ballot-engine/application/workers"
	"agora/contexts/assembly-governance/ballot-engine/ports"
)

// Module bundles the use cases the surrounding application consumes:
// configuration, casting, the extension check, tallying, and reads.
type Module struct {
	Ballots   commands.BallotUseCase
	Casting   commands.CastUseCase
	Extension commands.ExtensionUseCase
	Tally     commands.TallyUseCase
	Votes     queries.VoteQueryUseCase
	Results   queries.ResultQueryUseCase
	Watcher   workers.PeriodWatcher
	Store     *memory.Store
}

type Dependencies struct {
	Ballots ports.BallotRepository
	Secrets ports.SecretRepository
	Votes   ports.VoteRepository
	Results ports.ResultRepository
	Archive ports.ResultArchive
	Roster  ports.AttendeeRoster
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Tokens  ports.SecretSource
	Logger  *slog.Logger
	Metrics ports.MetricsRecorder
}

func NewModule(deps Dependencies) Module {
	ballotUseCase := commands.BallotUseCase{
		Ballots: deps.Ballots,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	castUseCase := commands.CastUseCase{
		Ballots: deps.Ballots,
		Secrets: deps.Secrets,
		Votes:   deps.Votes,
		Roster:  deps.Roster,
		Tokens:  deps.Tokens,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	}
	extensionUseCase := commands.ExtensionUseCase{
		Ballots: deps.Ballots,
		Votes:   deps.Votes,
		Roster:  deps.Roster,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	}
	tallyUseCase := commands.TallyUseCase{
		Ballots: deps.Ballots,
		Votes:   deps.Votes,
		Results: deps.Results,
		Archive: deps.Archive,
		Roster:  deps.Roster,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	}
	return Module{
		Ballots:   ballotUseCase,
		Casting:   castUseCase,
		Extension: extensionUseCase,
		Tally:     tallyUseCase,
		Votes: queries.VoteQueryUseCase{
			Secrets: deps.Secrets,
			Votes:   deps.Votes,
		},
		Results: queries.ResultQueryUseCase{
			Results: deps.Results,
			Archive: deps.Archive,
		},
		Watcher: workers.PeriodWatcher{
			Ballots:   deps.Ballots,
			Extension: extensionUseCase,
			Tally:     tallyUseCase,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory store, the standard
// arrangement for tests and local runs.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Ballots: store,
		Secrets: store,
		Votes:   store,
		Results: store,
		Archive: store,
		Roster:  store,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
		Tokens:  store,
		Logger:  logger,
	})
	module.Store = store
	return module
}
