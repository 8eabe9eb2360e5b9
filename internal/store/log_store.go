package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goto-jobdiva-bridge/internal/apperr"
	"goto-jobdiva-bridge/internal/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// LogFilter narrows List. Zero values mean "any".
type LogFilter struct {
	Limit       int
	Kind        models.InteractionKind
	CandidateID string
}

// LogStore persists InteractionLog rows.
type LogStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLogStore creates a LogStore over db.
func NewLogStore(db *gorm.DB) (*LogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database instance (gorm.DB) cannot be nil")
	}
	return &LogStore{db: db, now: time.Now}, nil
}

func (s *LogStore) prepare(l *models.InteractionLog) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = s.now().UTC()
	}
}

// Insert writes a new row, assigning an id and timestamp when missing.
func (s *LogStore) Insert(ctx context.Context, l *models.InteractionLog) error {
	s.prepare(l)
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		log.Error().Err(err).Str("logID", l.ID).Str("kind", string(l.Kind)).Msg("Failed to save InteractionLog to DB")
		return fmt.Errorf("failed to save InteractionLog: %w", err)
	}
	log.Debug().Str("logID", l.ID).Str("kind", string(l.Kind)).Str("direction", string(l.Direction)).Msg("Interaction log stored in DB")
	return nil
}

// FindByID returns the row with id or a NotFoundError.
func (s *LogStore) FindByID(ctx context.Context, id string) (*models.InteractionLog, error) {
	var l models.InteractionLog
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Resource: "interaction log", Key: id}
		}
		return nil, fmt.Errorf("error querying InteractionLog: %w", err)
	}
	return &l, nil
}

// FindByCallID returns the call row for callID, or (nil, nil) if none exists.
func (s *LogStore) FindByCallID(ctx context.Context, callID string) (*models.InteractionLog, error) {
	var l models.InteractionLog
	err := s.db.WithContext(ctx).Where("telephony_call_id = ?", callID).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying InteractionLog by call id: %w", err)
	}
	return &l, nil
}

// MergeUpdate applies fields (plain values or gorm.Expr) to the row with id.
func (s *LogStore) MergeUpdate(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.InteractionLog{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("error updating InteractionLog: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &apperr.NotFoundError{Resource: "interaction log", Key: id}
	}
	return nil
}

// UpsertCall inserts l, or merges it into the existing row with the same telephony call id.
// The unique index on telephony_call_id makes the insert attempt atomic, and the merge runs
// as SQL expressions so concurrent webhooks for one call never produce two rows or lose a note.
func (s *LogStore) UpsertCall(ctx context.Context, l *models.InteractionLog) (*models.InteractionLog, bool, error) {
	if l.TelephonyCallID == nil {
		if err := s.Insert(ctx, l); err != nil {
			return nil, false, err
		}
		return l, false, nil
	}

	s.prepare(l)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telephony_call_id"}},
			DoNothing: true,
		}).
		Create(l)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to upsert call InteractionLog: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		log.Debug().Str("logID", l.ID).Str("callID", *l.TelephonyCallID).Msg("Call interaction log created")
		return l, false, nil
	}

	existing, err := s.FindByCallID(ctx, *l.TelephonyCallID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("call InteractionLog %s conflicted but could not be read back", *l.TelephonyCallID)
	}
	if err := s.MergeUpdate(ctx, existing.ID, CallMergeFields(l)); err != nil {
		return nil, false, err
	}
	merged, err := s.FindByID(ctx, existing.ID)
	if err != nil {
		return nil, false, err
	}
	log.Debug().Str("logID", merged.ID).Str("callID", *l.TelephonyCallID).Msg("Call interaction log merged")
	return merged, true, nil
}

// CallMergeFields builds the update applied when a call event lands on an existing row.
// Empty incoming values never overwrite stored ones, a note recorded by either step survives,
// a successful note clears any earlier note error, and a completed call never goes back to initiated.
func CallMergeFields(l *models.InteractionLog) map[string]interface{} {
	return map[string]interface{}{
		"status":                gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END", models.StatusCompleted, l.Status),
		"call_duration_seconds": gorm.Expr("COALESCE(?, call_duration_seconds)", l.CallDurationSeconds),
		"call_result":           gorm.Expr("COALESCE(?, call_result)", l.CallResult),
		"telephony_session_id":  gorm.Expr("COALESCE(telephony_session_id, ?)", l.TelephonySessionID),
		"note_created":          gorm.Expr("(note_created OR ?)", l.NoteCreated),
		"note_id":               gorm.Expr("COALESCE(?, note_id)", l.NoteID),
		"note_error":            gorm.Expr("CASE WHEN ? THEN NULL WHEN note_created THEN note_error ELSE COALESCE(?, note_error) END", l.NoteCreated, l.NoteError),
	}
}

// List returns rows newest first.
func (s *LogStore) List(ctx context.Context, f LogFilter) ([]models.InteractionLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.CandidateID != "" {
		q = q.Where("candidate_id = ?", f.CandidateID)
	}

	var out []models.InteractionLog
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("error listing InteractionLogs: %w", err)
	}
	return out, nil
}
