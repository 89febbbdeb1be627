package ports

import (
	"context"
	"time"

	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
)

// BallotRepository owns ballot/candidate persistence plus the single-shot
// state transitions. ResolveExtension, FreezeQuorum and MarkTallied must be
// atomic per ballot: the first writer commits, every later writer observes
// the stored outcome instead of overwriting it.
type BallotRepository interface {
	SaveBallot(ctx context.Context, ballot entities.Ballot) error
	GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error)
	// ListDueBallots returns untallied ballots whose primary window elapsed.
	ListDueBallots(ctx context.Context, now time.Time) ([]entities.Ballot, error)
	SaveCandidate(ctx context.Context, candidate entities.Candidate) error
	ListCandidates(ctx context.Context, ballotID string) ([]entities.Candidate, error)
	// ResolveExtension records the extension decision and frozen quorum if and
	// only if the decision is still unset. It returns the canonical ballot and
	// whether this call committed the decision.
	ResolveExtension(ctx context.Context, ballotID string, quorum int, extended bool, at time.Time) (entities.Ballot, bool, error)
	// FreezeQuorum caches the resolved headcount if still unset.
	FreezeQuorum(ctx context.Context, ballotID string, quorum int, at time.Time) (entities.Ballot, error)
	// MarkTallied flips the tallied flag; a second call fails with
	// domainerrors.ErrAlreadyTallied.
	MarkTallied(ctx context.Context, ballotID string, at time.Time) error
}

// SecretRepository retains the voter-to-secret mapping. Save must reject a
// second secret for the same (ballot, voter) with domainerrors.ErrConflict so
// racing issuers converge on one token.
type SecretRepository interface {
	GetSecretByVoter(ctx context.Context, ballotID string, voterID string) (entities.SecretRecord, bool, error)
	SaveSecret(ctx context.Context, record entities.SecretRecord) error
}

// VoteRepository stores the current ranking per secret. Upsert is
// last-writer-wins per (ballot, secret); lookups never take a voter id.
type VoteRepository interface {
	UpsertVote(ctx context.Context, record entities.VoteRecord) error
	GetVote(ctx context.Context, ballotID string, secret string) (entities.VoteRecord, bool, error)
	ListVotes(ctx context.Context, ballotID string) ([]entities.VoteRecord, error)
	CountVotes(ctx context.Context, ballotID string) (int, error)
}

// ResultRepository persists the structured tally outcome, insert-only.
type ResultRepository interface {
	SaveResult(ctx context.Context, result entities.TallyResult) error
	GetResult(ctx context.Context, ballotID string) (entities.TallyResult, bool, error)
}

// ResultArchive is the durable write-once store for the canonical artifact.
// Publish of an already archived ballot fails with ErrAlreadyPublished.
type ResultArchive interface {
	Publish(ctx context.Context, ballotID string, artifact []byte) error
	Fetch(ctx context.Context, ballotID string) ([]byte, bool, error)
}

// AttendeeRoster is the external collaborator owning assembly attendance.
type AttendeeRoster interface {
	AttendeeCount(ctx context.Context, assemblyID string, at time.Time) (int, error)
	IsEligible(ctx context.Context, assemblyID string, voterID string) (bool, error)
}

// Clock makes wall-clock checks deterministic in tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts ballot/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// SecretSource yields unguessable per-voter secrets.
type SecretSource interface {
	NewSecret(ctx context.Context) (string, error)
}

// MetricsRecorder receives domain counters; implementations must be safe for
// concurrent use. A nil recorder disables instrumentation.
type MetricsRecorder interface {
	VoteCast(revote bool)
	ExtensionResolved(extended bool)
	TallyCompleted(quorumMet bool)
}

// EventEnvelope is the canonical event shape appended to the module outbox.
// Payloads carry no voter identifiers and no secrets.
type EventEnvelope struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	OccurredAt       time.Time `json:"occurred_at"`
	SourceService    string    `json:"source_service"`
	SchemaVersion    int       `json:"schema_version"`
	PartitionKeyPath string    `json:"partition_key_path"`
	PartitionKey     string    `json:"partition_key"`
	Data             []byte    `json:"data"`
}

// OutboxMessage is a persisted outbox row ready to relay.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxWriter appends events inside the command path.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxRepository is the relay-side view of the outbox.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher delivers relayed events to the bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
