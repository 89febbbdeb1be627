package commands

import (
	"encoding/json"
	"time"

	"agora/contexts/assembly-governance/ballot-engine/ports"
)

func newBallotEnvelope(
	eventID string,
	eventType string,
	ballotID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by ballot for stable ordering on
	// ballot-scoped consumers. Payloads never carry voter ids or secrets.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "ballot-engine",
		SchemaVersion:    1,
		PartitionKeyPath: "ballot_id",
		PartitionKey:     ballotID,
		Data:             payload,
	}, nil
}
