package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/internal/store"
	"goto-jobdiva-bridge/pkg/phone"
)

// MappingInput creates a recruiter mapping.
type MappingInput struct {
	RecruiterID          string
	RecruiterDisplayName string
	TelephonyUserID      string
	TelephonyPhone       string
	Extension            string
}

// MappingService is the admin surface over recruiter mappings.
type MappingService struct {
	repo MappingRepository
}

func NewMappingService(repo MappingRepository) (*MappingService, error) {
	if repo == nil {
		return nil, fmt.Errorf("mapping repository cannot be nil")
	}
	return &MappingService{repo: repo}, nil
}

// Create stores a new active mapping with a normalized phone number.
func (s *MappingService) Create(ctx context.Context, in MappingInput) (*models.RecruiterMapping, error) {
	for _, f := range []struct{ name, value string }{
		{"recruiter_id", in.RecruiterID},
		{"recruiter_name", in.RecruiterDisplayName},
		{"goto_user_id", in.TelephonyUserID},
		{"goto_phone_number", in.TelephonyPhone},
	} {
		if err := requireField(f.name, f.value); err != nil {
			return nil, err
		}
	}

	m := &models.RecruiterMapping{
		RecruiterID:          in.RecruiterID,
		RecruiterDisplayName: in.RecruiterDisplayName,
		TelephonyUserID:      in.TelephonyUserID,
		TelephonyPhoneE164:   phone.NormalizeE164(in.TelephonyPhone),
		Extension:            models.StringPtr(in.Extension),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	log.Info().Str("recruiterID", m.RecruiterID).Str("recruiterName", m.RecruiterDisplayName).Msg("Created mapping")
	return m, nil
}

func (s *MappingService) Get(ctx context.Context, recruiterID string) (*models.RecruiterMapping, error) {
	return s.repo.Get(ctx, recruiterID)
}

func (s *MappingService) List(ctx context.Context, activeOnly bool) ([]models.RecruiterMapping, error) {
	return s.repo.List(ctx, activeOnly)
}

// Update applies patch, normalizing a new phone number.
func (s *MappingService) Update(ctx context.Context, recruiterID string, patch store.MappingPatch) (*models.RecruiterMapping, error) {
	if patch.TelephonyPhoneE164 != nil {
		if err := requireField("goto_phone_number", *patch.TelephonyPhoneE164); err != nil {
			return nil, err
		}
		normalized := phone.NormalizeE164(*patch.TelephonyPhoneE164)
		patch.TelephonyPhoneE164 = &normalized
	}
	m, err := s.repo.Update(ctx, recruiterID, patch)
	if err != nil {
		return nil, err
	}
	log.Info().Str("recruiterID", recruiterID).Msg("Updated mapping")
	return m, nil
}

// Deactivate soft-deletes the mapping.
func (s *MappingService) Deactivate(ctx context.Context, recruiterID string) error {
	if err := s.repo.Deactivate(ctx, recruiterID); err != nil {
		return err
	}
	log.Info().Str("recruiterID", recruiterID).Msg("Deactivated mapping")
	return nil
}
