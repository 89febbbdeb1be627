package memory

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-process implementation of every ballot-engine port, used
// for tests and local wiring. One mutex guards all maps; the single-shot
// transitions (ResolveExtension, FreezeQuorum, MarkTallied) are therefore
// naturally atomic per ballot.
type Store struct {
	mu sync.RWMutex

	ballots    map[string]entities.Ballot
	candidates map[string][]entities.Candidate
	secrets    map[string]entities.SecretRecord // ballotID+"\x00"+voterID
	votes      map[string]entities.VoteRecord   // ballotID+"\x00"+secret
	results    map[string]entities.TallyResult
	artifacts  map[string][]byte
	outbox     map[string]outboxRecord

	attendees map[string]int
	eligible  map[string]map[string]bool

	nowFunc func() time.Time
}

func NewStore() *Store {
	return &Store{
		ballots:    make(map[string]entities.Ballot),
		candidates: make(map[string][]entities.Candidate),
		secrets:    make(map[string]entities.SecretRecord),
		votes:      make(map[string]entities.VoteRecord),
		results:    make(map[string]entities.TallyResult),
		artifacts:  make(map[string][]byte),
		outbox:     make(map[string]outboxRecord),
		attendees:  make(map[string]int),
		eligible:   make(map[string]map[string]bool),
	}
}

// SetNow pins the store clock for deterministic tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frozen := now.UTC()
	s.nowFunc = func() time.Time { return frozen }
}

// SetAttendeeCount seeds the roster projection for an assembly.
func (s *Store) SetAttendeeCount(assemblyID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendees[strings.TrimSpace(assemblyID)] = count
}

// SetEligibleVoter seeds roster eligibility for a voter.
func (s *Store) SetEligibleVoter(assemblyID string, voterID string, eligible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assemblyID = strings.TrimSpace(assemblyID)
	if s.eligible[assemblyID] == nil {
		s.eligible[assemblyID] = make(map[string]bool)
	}
	s.eligible[assemblyID][strings.TrimSpace(voterID)] = eligible
}

func (s *Store) SaveBallot(_ context.Context, ballot entities.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballots[strings.TrimSpace(ballot.BallotID)] = ballot
	return nil
}

func (s *Store) GetBallot(_ context.Context, ballotID string) (entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}
	return ballot, nil
}

func (s *Store) ListDueBallots(_ context.Context, now time.Time) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.ballots {
		if ballot.Tallied {
			continue
		}
		if ballot.VoteEnd.After(now) {
			continue
		}
		items = append(items, ballot)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].BallotID < items[j].BallotID
	})
	return items, nil
}

func (s *Store) SaveCandidate(_ context.Context, candidate entities.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ballotID := strings.TrimSpace(candidate.BallotID)
	for _, existing := range s.candidates[ballotID] {
		if existing.Token == candidate.Token {
			return domainerrors.ErrDuplicateCandidate
		}
	}
	s.candidates[ballotID] = append(s.candidates[ballotID], candidate)
	return nil
}

func (s *Store) ListCandidates(_ context.Context, ballotID string) ([]entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := append([]entities.Candidate(nil), s.candidates[strings.TrimSpace(ballotID)]...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position == items[j].Position {
			return items[i].Token < items[j].Token
		}
		return items[i].Position < items[j].Position
	})
	return items, nil
}

func (s *Store) ResolveExtension(
	_ context.Context,
	ballotID string,
	quorum int,
	extended bool,
	at time.Time,
) (entities.Ballot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ballot, ok := s.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, false, domainerrors.ErrBallotNotFound
	}
	if ballot.Extended != nil {
		return ballot, false, nil
	}
	ballot.Extended = &extended
	ballot.Quorum = &quorum
	ballot.UpdatedAt = at.UTC()
	s.ballots[ballot.BallotID] = ballot
	return ballot, true, nil
}

func (s *Store) FreezeQuorum(_ context.Context, ballotID string, quorum int, at time.Time) (entities.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ballot, ok := s.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}
	if ballot.Quorum != nil {
		return ballot, nil
	}
	ballot.Quorum = &quorum
	ballot.UpdatedAt = at.UTC()
	s.ballots[ballot.BallotID] = ballot
	return ballot, nil
}

func (s *Store) MarkTallied(_ context.Context, ballotID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ballot, ok := s.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return domainerrors.ErrBallotNotFound
	}
	if ballot.Tallied {
		return domainerrors.ErrAlreadyTallied
	}
	ballot.Tallied = true
	ballot.UpdatedAt = at.UTC()
	s.ballots[ballot.BallotID] = ballot
	return nil
}

func (s *Store) GetSecretByVoter(_ context.Context, ballotID string, voterID string) (entities.SecretRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.secrets[secretKey(ballotID, voterID)]
	if !ok {
		return entities.SecretRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) SaveSecret(_ context.Context, record entities.SecretRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := secretKey(record.BallotID, record.VoterID)
	if _, exists := s.secrets[key]; exists {
		return domainerrors.ErrConflict
	}
	s.secrets[key] = record
	return nil
}

func (s *Store) UpsertVote(_ context.Context, record entities.VoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey(record.BallotID, record.Secret)
	if existing, ok := s.votes[key]; ok {
		record.CastAt = existing.CastAt
	}
	s.votes[key] = record
	return nil
}

func (s *Store) GetVote(_ context.Context, ballotID string, secret string) (entities.VoteRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.votes[voteKey(ballotID, secret)]
	if !ok {
		return entities.VoteRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) ListVotes(_ context.Context, ballotID string) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballotID = strings.TrimSpace(ballotID)
	items := make([]entities.VoteRecord, 0)
	for _, record := range s.votes {
		if record.BallotID == ballotID {
			items = append(items, record)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Secret < items[j].Secret
	})
	return items, nil
}

func (s *Store) CountVotes(_ context.Context, ballotID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballotID = strings.TrimSpace(ballotID)
	count := 0
	for _, record := range s.votes {
		if record.BallotID == ballotID {
			count++
		}
	}
	return count, nil
}

func (s *Store) SaveResult(_ context.Context, result entities.TallyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ballotID := strings.TrimSpace(result.BallotID)
	if _, exists := s.results[ballotID]; exists {
		return domainerrors.ErrAlreadyTallied
	}
	s.results[ballotID] = result
	return nil
}

func (s *Store) GetResult(_ context.Context, ballotID string) (entities.TallyResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.TallyResult{}, false, nil
	}
	return result, true, nil
}

func (s *Store) Publish(_ context.Context, ballotID string, artifact []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ballotID = strings.TrimSpace(ballotID)
	if _, exists := s.artifacts[ballotID]; exists {
		return domainerrors.ErrAlreadyPublished
	}
	s.artifacts[ballotID] = append([]byte(nil), artifact...)
	return nil
}

func (s *Store) Fetch(_ context.Context, ballotID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifact, ok := s.artifacts[strings.TrimSpace(ballotID)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), artifact...), true, nil
}

func (s *Store) AttendeeCount(_ context.Context, assemblyID string, _ time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attendees[strings.TrimSpace(assemblyID)], nil
}

func (s *Store) IsEligible(_ context.Context, assemblyID string, voterID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voters, ok := s.eligible[strings.TrimSpace(assemblyID)]
	if !ok {
		return false, nil
	}
	return voters[strings.TrimSpace(voterID)], nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	nowFunc := s.nowFunc
	s.mu.RUnlock()
	if nowFunc != nil {
		return nowFunc()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) NewSecret(_ context.Context) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func secretKey(ballotID string, voterID string) string {
	return strings.TrimSpace(ballotID) + "\x00" + strings.TrimSpace(voterID)
}

func voteKey(ballotID string, secret string) string {
	return strings.TrimSpace(ballotID) + "\x00" + strings.TrimSpace(secret)
}

var _ ports.BallotRepository = (*Store)(nil)
var _ ports.SecretRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.ResultRepository = (*Store)(nil)
var _ ports.ResultArchive = (*Store)(nil)
var _ ports.AttendeeRoster = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.SecretSource = (*Store)(nil)
