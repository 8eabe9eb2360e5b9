package services

import (
	"context"

	"goto-jobdiva-bridge/internal/adapters/gotoconnect"
	"goto-jobdiva-bridge/internal/adapters/jobdiva"
	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/internal/store"
)

// Telephony is the GoTo Connect capability the reconciler needs.
type Telephony interface {
	SendMessage(ctx context.Context, ownerNumber string, recipients []string, body string) (*gotoconnect.MessageResult, error)
	InitiateCall(ctx context.Context, fromNumber, toNumber, userID string) (*gotoconnect.CallResult, error)
}

// ATS is the JobDiva capability the reconciler needs.
type ATS interface {
	CreateNote(ctx context.Context, candidateID, text string) (*jobdiva.NoteResult, error)
	FindCandidateByPhone(ctx context.Context, phone string) (*jobdiva.Candidate, error)
}

// CandidateForgetter is implemented by ATS clients that cache candidate lookups.
type CandidateForgetter interface {
	Forget(phone string)
}

// MappingLookup resolves recruiters to telephony identities. Misses are (nil, nil).
type MappingLookup interface {
	FindActiveByRecruiterKey(ctx context.Context, key string) (*models.RecruiterMapping, error)
	FindActiveByTelephonyNumber(ctx context.Context, number string) (*models.RecruiterMapping, error)
}

// LogWriter persists interaction logs.
type LogWriter interface {
	Insert(ctx context.Context, l *models.InteractionLog) error
	UpsertCall(ctx context.Context, l *models.InteractionLog) (*models.InteractionLog, bool, error)
}

// MappingRepository is the storage behind MappingService.
type MappingRepository interface {
	Create(ctx context.Context, m *models.RecruiterMapping) error
	Get(ctx context.Context, recruiterID string) (*models.RecruiterMapping, error)
	List(ctx context.Context, activeOnly bool) ([]models.RecruiterMapping, error)
	Update(ctx context.Context, recruiterID string, patch store.MappingPatch) (*models.RecruiterMapping, error)
	Deactivate(ctx context.Context, recruiterID string) error
}
