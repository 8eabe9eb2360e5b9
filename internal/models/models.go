package models

import (
	"time"
)

// InteractionKind distinguishes SMS from call records.
type InteractionKind string

const (
	KindSMS  InteractionKind = "sms"
	KindCall InteractionKind = "call"
)

// Direction is relative to the recruiter: outbound means recruiter -> candidate.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Call lifecycle statuses. SMS statuses are whatever the telephony platform reports.
const (
	StatusInitiated = "initiated"
	StatusCompleted = "completed"
	StatusSent      = "sent"
)

// Sentinel names used when an identity cannot be resolved.
const (
	UnknownRecruiter = "Unknown Recruiter"
	UnknownCandidate = "Unknown Candidate"
)

// RecruiterMapping maps a JobDiva recruiter to their GoTo Connect user and phone number.
// Rows are never hard-deleted; deactivation flips Active.
type RecruiterMapping struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	RecruiterID          string    `gorm:"uniqueIndex;not null;comment:JobDiva user id" json:"recruiter_id"`
	RecruiterDisplayName string    `gorm:"index;comment:JobDiva user name" json:"recruiter_name"`
	TelephonyUserID      string    `gorm:"comment:GoTo user id" json:"goto_user_id"`
	TelephonyPhoneE164   string    `gorm:"column:telephony_phone_e164;index;comment:GoTo phone number in E.164" json:"goto_phone_number"`
	Extension            *string   `json:"goto_extension,omitempty"`
	Active               bool      `gorm:"index;not null" json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// InteractionLog is one audit row for an SMS or call.
// For calls TelephonyCallID is unique: later lifecycle events merge into the same row.
type InteractionLog struct {
	ID                  string          `gorm:"primaryKey;size:36" json:"id"`
	Kind                InteractionKind `gorm:"index;not null" json:"interaction_type"`
	Direction           Direction       `gorm:"not null" json:"direction"`
	CandidateID         *string         `gorm:"index" json:"candidate_id"`
	CandidateName       string          `json:"candidate_name"`
	CandidatePhone      string          `json:"candidate_phone"`
	RecruiterID         *string         `json:"recruiter_id"`
	RecruiterName       string          `json:"recruiter_name"`
	RecruiterPhone      string          `json:"recruiter_phone"`
	TelephonyMessageID  *string         `json:"goto_message_id"`
	TelephonyCallID     *string         `gorm:"uniqueIndex" json:"goto_call_id"`
	TelephonySessionID  *string         `json:"goto_session_id"`
	MessageBody         *string         `gorm:"type:text" json:"message_body"`
	CallDurationSeconds *int            `json:"call_duration"`
	CallResult          *string         `json:"call_result"`
	Status              string          `gorm:"not null" json:"status"`
	Timestamp           time.Time       `gorm:"index" json:"timestamp"`
	NoteCreated         bool            `gorm:"not null;default:false" json:"jobdiva_note_created"`
	NoteID              *string         `json:"jobdiva_note_id"`
	NoteError           *string         `gorm:"type:text" json:"jobdiva_note_error"`
}

// StringPtr returns nil for "" so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
