package postgresadapter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveBallot(ctx context.Context, ballot entities.Ballot) error {
	row := ballotModelFromEntity(ballot)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"assembly_id":        row.AssemblyID,
			"title":              row.Title,
			"description":        row.Description,
			"notes":              row.Notes,
			"vote_begin":         row.VoteBegin,
			"vote_end":           row.VoteEnd,
			"vote_extension_end": row.VoteExtensionEnd,
			"uses_bar":           row.UsesBar,
			"abs_quorum":         row.AbsQuorum,
			"rel_quorum":         row.RelQuorum,
			"updated_at":         row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_save_ballot_failed", create.Error,
			"ballot_id", strings.TrimSpace(ballot.BallotID),
		)
	}
	return nil
}

func (r *Repository) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(ballotID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, domainerrors.ErrBallotNotFound
		}
		return entities.Ballot{}, r.logError("ballot_repo_get_ballot_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListDueBallots(ctx context.Context, now time.Time) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("tallied = ?", false).
		Where("vote_end <= ?", now.UTC()).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_due_ballots_failed", err)
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SaveCandidate(ctx context.Context, candidate entities.Candidate) error {
	row := candidateModel{
		BallotID:  strings.TrimSpace(candidate.BallotID),
		Token:     strings.TrimSpace(candidate.Token),
		Title:     strings.TrimSpace(candidate.Title),
		Position:  candidate.Position,
		CreatedAt: candidate.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateCandidate
		}
		return r.logError("ballot_repo_save_candidate_failed", err,
			"ballot_id", row.BallotID,
			"token", row.Token,
		)
	}
	return nil
}

func (r *Repository) ListCandidates(ctx context.Context, ballotID string) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.db.WithContext(ctx).
		Where("ballot_id = ?", strings.TrimSpace(ballotID)).
		Order("position ASC, token ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_candidates_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.Candidate{
			BallotID:  row.BallotID,
			Token:     row.Token,
			Title:     row.Title,
			Position:  row.Position,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) ResolveExtension(
	ctx context.Context,
	ballotID string,
	quorum int,
	extended bool,
	at time.Time,
) (entities.Ballot, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("id = ?", strings.TrimSpace(ballotID)).
		Where("extended IS NULL").
		Updates(map[string]any{
			"extended":   extended,
			"quorum":     quorum,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return entities.Ballot{}, false, r.logError("ballot_repo_resolve_extension_failed", result.Error,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	ballot, err := r.GetBallot(ctx, ballotID)
	if err != nil {
		return entities.Ballot{}, false, err
	}
	return ballot, result.RowsAffected > 0, nil
}

func (r *Repository) FreezeQuorum(ctx context.Context, ballotID string, quorum int, at time.Time) (entities.Ballot, error) {
	result := r.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("id = ?", strings.TrimSpace(ballotID)).
		Where("quorum IS NULL").
		Updates(map[string]any{
			"quorum":     quorum,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return entities.Ballot{}, r.logError("ballot_repo_freeze_quorum_failed", result.Error,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	return r.GetBallot(ctx, ballotID)
}

func (r *Repository) MarkTallied(ctx context.Context, ballotID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("id = ?", strings.TrimSpace(ballotID)).
		Where("tallied = ?", false).
		Updates(map[string]any{
			"tallied":    true,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return r.logError("ballot_repo_mark_tallied_failed", result.Error,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetBallot(ctx, ballotID); err != nil {
			return err
		}
		return domainerrors.ErrAlreadyTallied
	}
	return nil
}

func (r *Repository) GetSecretByVoter(ctx context.Context, ballotID string, voterID string) (entities.SecretRecord, bool, error) {
	var row secretModel
	err := r.db.WithContext(ctx).
		Where("ballot_id = ?", strings.TrimSpace(ballotID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SecretRecord{}, false, nil
		}
		return entities.SecretRecord{}, false, r.logError("ballot_repo_get_secret_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	return entities.SecretRecord{
		BallotID: row.BallotID,
		VoterID:  row.VoterID,
		Secret:   row.Secret,
		IssuedAt: row.IssuedAt.UTC(),
	}, true, nil
}

func (r *Repository) SaveSecret(ctx context.Context, record entities.SecretRecord) error {
	row := secretModel{
		BallotID: strings.TrimSpace(record.BallotID),
		VoterID:  strings.TrimSpace(record.VoterID),
		Secret:   strings.TrimSpace(record.Secret),
		IssuedAt: record.IssuedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ballot_id"}, {Name: "voter_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("ballot_repo_save_secret_failed", create.Error,
			"ballot_id", row.BallotID,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) UpsertVote(ctx context.Context, record entities.VoteRecord) error {
	row := voteModel{
		BallotID:  strings.TrimSpace(record.BallotID),
		Secret:    strings.TrimSpace(record.Secret),
		Ranking:   record.Ranking.String(),
		CastAt:    record.CastAt.UTC(),
		UpdatedAt: record.UpdatedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ballot_id"}, {Name: "secret"}},
		DoUpdates: clause.Assignments(map[string]any{
			"ranking":    row.Ranking,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_upsert_vote_failed", create.Error,
			"ballot_id", row.BallotID,
		)
	}
	return nil
}

func (r *Repository) GetVote(ctx context.Context, ballotID string, secret string) (entities.VoteRecord, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("ballot_id = ?", strings.TrimSpace(ballotID)).
		Where("secret = ?", strings.TrimSpace(secret)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteRecord{}, false, nil
		}
		return entities.VoteRecord{}, false, r.logError("ballot_repo_get_vote_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	record, err := row.toEntity()
	if err != nil {
		return entities.VoteRecord{}, false, err
	}
	return record, true, nil
}

func (r *Repository) ListVotes(ctx context.Context, ballotID string) ([]entities.VoteRecord, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("ballot_id = ?", strings.TrimSpace(ballotID)).
		Order("secret ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_votes_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	items := make([]entities.VoteRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	return items, nil
}

func (r *Repository) CountVotes(ctx context.Context, ballotID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("ballot_id = ?", strings.TrimSpace(ballotID)).
		Count(&count).Error; err != nil {
		return 0, r.logError("ballot_repo_count_votes_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	return int(count), nil
}

func (r *Repository) SaveResult(ctx context.Context, result entities.TallyResult) error {
	payload, err := result.CanonicalJSON()
	if err != nil {
		return err
	}
	row := resultModel{
		BallotID:  strings.TrimSpace(result.BallotID),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ballot_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrAlreadyTallied
		}
		return r.logError("ballot_repo_save_result_failed", create.Error,
			"ballot_id", row.BallotID,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrAlreadyTallied
	}
	return nil
}

func (r *Repository) GetResult(ctx context.Context, ballotID string) (entities.TallyResult, bool, error) {
	var row resultModel
	err := r.db.WithContext(ctx).
		Where("ballot_id = ?", strings.TrimSpace(ballotID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.TallyResult{}, false, nil
		}
		return entities.TallyResult{}, false, r.logError("ballot_repo_get_result_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	result, err := row.toEntity()
	if err != nil {
		return entities.TallyResult{}, false, err
	}
	return result, true, nil
}

// AttendeeCount reads the attendance projection maintained by the assembly
// check-in flow. A missing row means nobody checked in yet.
func (r *Repository) AttendeeCount(ctx context.Context, assemblyID string, _ time.Time) (int, error) {
	var row attendanceModel
	err := r.db.WithContext(ctx).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, r.logError("ballot_repo_attendee_count_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
		)
	}
	return row.AttendeeCount, nil
}

func (r *Repository) IsEligible(ctx context.Context, assemblyID string, voterID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&assemblyVoterModel{}).
		Where("assembly_id = ?", strings.TrimSpace(assemblyID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("ballot_repo_is_eligible_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
		)
	}
	return count > 0, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := marshalEnvelope(envelope)
	if err != nil {
		return r.logError("ballot_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_append_outbox_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ballot_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "assembly-governance/ballot-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

// SystemClock satisfies ports.Clock with the process wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator satisfies ports.IDGenerator.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// RandomSecretSource issues 128-bit hex secrets from crypto/rand.
type RandomSecretSource struct{}

func (RandomSecretSource) NewSecret(_ context.Context) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type ballotModel struct {
	ID               string     `gorm:"column:id;primaryKey"`
	AssemblyID       string     `gorm:"column:assembly_id"`
	Title            string     `gorm:"column:title"`
	Description      string     `gorm:"column:description"`
	Notes            string     `gorm:"column:notes"`
	VoteBegin        time.Time  `gorm:"column:vote_begin"`
	VoteEnd          time.Time  `gorm:"column:vote_end"`
	VoteExtensionEnd *time.Time `gorm:"column:vote_extension_end"`
	UsesBar          bool       `gorm:"column:uses_bar"`
	AbsQuorum        int        `gorm:"column:abs_quorum"`
	RelQuorum        int        `gorm:"column:rel_quorum"`
	Quorum           *int       `gorm:"column:quorum"`
	Extended         *bool      `gorm:"column:extended"`
	Tallied          bool       `gorm:"column:tallied"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (ballotModel) TableName() string {
	return "assembly_ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) ballotModel {
	row := ballotModel{
		ID:               strings.TrimSpace(ballot.BallotID),
		AssemblyID:       strings.TrimSpace(ballot.AssemblyID),
		Title:            strings.TrimSpace(ballot.Title),
		Description:      ballot.Description,
		Notes:            ballot.Notes,
		VoteBegin:        ballot.VoteBegin.UTC(),
		VoteEnd:          ballot.VoteEnd.UTC(),
		VoteExtensionEnd: normalizeOptionalTime(ballot.VoteExtensionEnd),
		UsesBar:          ballot.UsesBar,
		AbsQuorum:        ballot.AbsQuorum,
		RelQuorum:        ballot.RelQuorum,
		Quorum:           ballot.Quorum,
		Extended:         ballot.Extended,
		Tallied:          ballot.Tallied,
		CreatedAt:        ballot.CreatedAt.UTC(),
		UpdatedAt:        ballot.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m ballotModel) toEntity() entities.Ballot {
	return entities.Ballot{
		BallotID:         m.ID,
		AssemblyID:       m.AssemblyID,
		Title:            m.Title,
		Description:      m.Description,
		Notes:            m.Notes,
		VoteBegin:        m.VoteBegin.UTC(),
		VoteEnd:          m.VoteEnd.UTC(),
		VoteExtensionEnd: normalizeOptionalTime(m.VoteExtensionEnd),
		UsesBar:          m.UsesBar,
		AbsQuorum:        m.AbsQuorum,
		RelQuorum:        m.RelQuorum,
		Quorum:           m.Quorum,
		Extended:         m.Extended,
		Tallied:          m.Tallied,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

type candidateModel struct {
	BallotID  string    `gorm:"column:ballot_id;primaryKey"`
	Token     string    `gorm:"column:token;primaryKey"`
	Title     string    `gorm:"column:title"`
	Position  int       `gorm:"column:position"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (candidateModel) TableName() string {
	return "ballot_candidates"
}

type secretModel struct {
	BallotID string    `gorm:"column:ballot_id;primaryKey"`
	VoterID  string    `gorm:"column:voter_id;primaryKey"`
	Secret   string    `gorm:"column:secret"`
	IssuedAt time.Time `gorm:"column:issued_at"`
}

func (secretModel) TableName() string {
	return "ballot_secrets"
}

type voteModel struct {
	BallotID  string    `gorm:"column:ballot_id;primaryKey"`
	Secret    string    `gorm:"column:secret;primaryKey"`
	Ranking   string    `gorm:"column:ranking"`
	CastAt    time.Time `gorm:"column:cast_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "ballot_votes"
}

func (m voteModel) toEntity() (entities.VoteRecord, error) {
	ranking, err := entities.ParseRanking(m.Ranking)
	if err != nil {
		return entities.VoteRecord{}, err
	}
	return entities.VoteRecord{
		BallotID:  m.BallotID,
		Secret:    m.Secret,
		Ranking:   ranking,
		CastAt:    m.CastAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

type resultModel struct {
	BallotID  string    `gorm:"column:ballot_id;primaryKey"`
	Payload   []byte    `gorm:"column:payload"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (resultModel) TableName() string {
	return "ballot_results"
}

func (m resultModel) toEntity() (entities.TallyResult, error) {
	var result entities.TallyResult
	if err := unmarshalResult(m.Payload, &result); err != nil {
		return entities.TallyResult{}, err
	}
	return result, nil
}

type attendanceModel struct {
	AssemblyID    string    `gorm:"column:assembly_id;primaryKey"`
	AttendeeCount int       `gorm:"column:attendee_count"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (attendanceModel) TableName() string {
	return "assembly_attendance"
}

type assemblyVoterModel struct {
	AssemblyID string    `gorm:"column:assembly_id;primaryKey"`
	VoterID    string    `gorm:"column:voter_id;primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (assemblyVoterModel) TableName() string {
	return "assembly_voters"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ballot_outbox"
}

func marshalEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func unmarshalResult(payload []byte, result *entities.TallyResult) error {
	return json.Unmarshal(payload, result)
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.BallotRepository = (*Repository)(nil)
var _ ports.SecretRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.ResultRepository = (*Repository)(nil)
var _ ports.AttendeeRoster = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.Clock = SystemClock{}
var _ ports.IDGenerator = UUIDGenerator{}
var _ ports.SecretSource = RandomSecretSource{}
