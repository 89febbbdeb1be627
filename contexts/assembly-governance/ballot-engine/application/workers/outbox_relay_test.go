package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/contexts/assembly-governance/ballot-engine/adapters/memory"
	"agora/contexts/assembly-governance/ballot-engine/ports"

	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	published []ports.EventEnvelope
	topics    []string
	failOn    string
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.failOn != "" && event.EventID == p.failOn {
		return errors.New("bus unavailable")
	}
	p.published = append(p.published, event)
	p.topics = append(p.topics, topic)
	return nil
}

func appendEnvelope(t *testing.T, store *memory.Store, eventID string, occurredAt time.Time) {
	t.Helper()
	require.NoError(t, store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:          eventID,
		EventType:        "ballot.vote_cast",
		OccurredAt:       occurredAt,
		SourceService:    "ballot-engine",
		SchemaVersion:    1,
		PartitionKeyPath: "ballot_id",
		PartitionKey:     "ballot-1",
		Data:             []byte(`{"ballot_id":"ballot-1"}`),
	}))
}

func TestOutboxRelayPublishesPendingInOrder(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, 5, 20, 18, 0, 0, 0, time.UTC)
	appendEnvelope(t, store, "event-2", base.Add(time.Minute))
	appendEnvelope(t, store, "event-1", base)

	publisher := &capturingPublisher{}
	relay := OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
	}

	require.NoError(t, relay.RunOnce(context.Background()))
	require.Len(t, publisher.published, 2)
	require.Equal(t, "event-1", publisher.published[0].EventID)
	require.Equal(t, "event-2", publisher.published[1].EventID)
	require.Equal(t, []string{"ballot.vote_cast", "ballot.vote_cast"}, publisher.topics)

	// Published rows stay published; a second cycle is a no-op.
	publisher.published = nil
	require.NoError(t, relay.RunOnce(context.Background()))
	require.Empty(t, publisher.published)
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, 5, 20, 18, 0, 0, 0, time.UTC)
	appendEnvelope(t, store, "event-1", base)
	appendEnvelope(t, store, "event-2", base.Add(time.Minute))

	publisher := &capturingPublisher{failOn: "event-1"}
	relay := OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     store,
	}

	require.Error(t, relay.RunOnce(context.Background()))
	require.Empty(t, publisher.published)

	// The failed row was not marked published and is retried next cycle.
	publisher.failOn = ""
	require.NoError(t, relay.RunOnce(context.Background()))
	require.Len(t, publisher.published, 2)
}
