package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"goto-jobdiva-bridge/internal/apperr"
	"goto-jobdiva-bridge/internal/models"
)

// MappingPatch lists the mutable fields of a RecruiterMapping; nil means unchanged.
type MappingPatch struct {
	RecruiterDisplayName *string
	TelephonyUserID      *string
	TelephonyPhoneE164   *string
	Extension            *string
	Active               *bool
}

// MappingStore persists recruiter <-> telephony identity mappings.
type MappingStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMappingStore creates a MappingStore over db.
func NewMappingStore(db *gorm.DB) (*MappingStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database instance (gorm.DB) cannot be nil")
	}
	return &MappingStore{db: db, now: time.Now}, nil
}

// Create inserts a new active mapping. A second mapping for the same recruiter id is a ConflictError.
func (s *MappingStore) Create(ctx context.Context, m *models.RecruiterMapping) error {
	existing, err := s.Get(ctx, m.RecruiterID)
	if err == nil && existing != nil {
		return &apperr.ConflictError{Resource: "mapping", Key: m.RecruiterID}
	}
	if err != nil && !apperr.IsNotFound(err) {
		return err
	}

	now := s.now().UTC()
	m.Active = true
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &apperr.ConflictError{Resource: "mapping", Key: m.RecruiterID}
		}
		log.Error().Err(err).Str("recruiterID", m.RecruiterID).Msg("Failed to save RecruiterMapping to DB")
		return fmt.Errorf("failed to save RecruiterMapping: %w", err)
	}
	log.Info().Str("recruiterID", m.RecruiterID).Str("phone", m.TelephonyPhoneE164).Msg("Recruiter mapping stored in DB")
	return nil
}

// Get returns the mapping for recruiterID whether or not it is active.
func (s *MappingStore) Get(ctx context.Context, recruiterID string) (*models.RecruiterMapping, error) {
	var m models.RecruiterMapping
	err := s.db.WithContext(ctx).Where("recruiter_id = ?", recruiterID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Resource: "mapping", Key: recruiterID}
		}
		return nil, fmt.Errorf("error querying RecruiterMapping: %w", err)
	}
	return &m, nil
}

// List returns all mappings, or only active ones.
func (s *MappingStore) List(ctx context.Context, activeOnly bool) ([]models.RecruiterMapping, error) {
	q := s.db.WithContext(ctx).Order("recruiter_id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.RecruiterMapping
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("error listing RecruiterMappings: %w", err)
	}
	return out, nil
}

// Update applies patch and refreshes UpdatedAt.
func (s *MappingStore) Update(ctx context.Context, recruiterID string, patch MappingPatch) (*models.RecruiterMapping, error) {
	fields := map[string]interface{}{"updated_at": s.now().UTC()}
	if patch.RecruiterDisplayName != nil {
		fields["recruiter_display_name"] = *patch.RecruiterDisplayName
	}
	if patch.TelephonyUserID != nil {
		fields["telephony_user_id"] = *patch.TelephonyUserID
	}
	if patch.TelephonyPhoneE164 != nil {
		fields["telephony_phone_e164"] = *patch.TelephonyPhoneE164
	}
	if patch.Extension != nil {
		fields["extension"] = models.StringPtr(*patch.Extension)
	}
	if patch.Active != nil {
		fields["active"] = *patch.Active
	}

	res := s.db.WithContext(ctx).Model(&models.RecruiterMapping{}).Where("recruiter_id = ?", recruiterID).Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("error updating RecruiterMapping: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &apperr.NotFoundError{Resource: "mapping", Key: recruiterID}
	}
	return s.Get(ctx, recruiterID)
}

// Deactivate soft-deletes a mapping.
func (s *MappingStore) Deactivate(ctx context.Context, recruiterID string) error {
	inactive := false
	_, err := s.Update(ctx, recruiterID, MappingPatch{Active: &inactive})
	return err
}

// FindActiveByRecruiterKey matches an active mapping by recruiter id or display name.
// A miss is reported as (nil, nil).
func (s *MappingStore) FindActiveByRecruiterKey(ctx context.Context, key string) (*models.RecruiterMapping, error) {
	if key == "" {
		return nil, nil
	}
	// An id match wins over a display-name match.
	for _, column := range []string{"recruiter_id", "recruiter_display_name"} {
		var m models.RecruiterMapping
		err := s.db.WithContext(ctx).
			Where("active = ? AND "+column+" = ?", true, key).
			Order("id ASC").
			First(&m).Error
		got, err := found(&m, err)
		if err != nil || got != nil {
			return got, err
		}
	}
	return nil, nil
}

// FindActiveByTelephonyNumber matches an active mapping by its GoTo phone number (E.164).
// A miss is reported as (nil, nil).
func (s *MappingStore) FindActiveByTelephonyNumber(ctx context.Context, number string) (*models.RecruiterMapping, error) {
	if number == "" {
		return nil, nil
	}
	var m models.RecruiterMapping
	err := s.db.WithContext(ctx).
		Where("active = ? AND telephony_phone_e164 = ?", true, number).
		First(&m).Error
	return found(&m, err)
}

func found(m *models.RecruiterMapping, err error) (*models.RecruiterMapping, error) {
	if err == nil {
		return m, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("error querying RecruiterMapping: %w", err)
}
