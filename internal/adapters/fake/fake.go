// Package fake provides in-memory GoTo and JobDiva doubles.
// They back MOCK_VENDORS=true and the service tests.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/adapters/gotoconnect"
	"goto-jobdiva-bridge/internal/adapters/jobdiva"
)

// SentMessage records one SendMessage call.
type SentMessage struct {
	Owner      string
	Recipients []string
	Body       string
}

// PlacedCall records one InitiateCall call.
type PlacedCall struct {
	From   string
	To     string
	UserID string
}

// Telephony is a GoTo Connect double.
type Telephony struct {
	mu       sync.Mutex
	Messages []SentMessage
	Calls    []PlacedCall

	// SendErr and CallErr, when set, are returned instead of a result.
	SendErr error
	CallErr error
	// Status overrides the reported SMS status.
	Status string
	// Method overrides the reported call method.
	Method string
}

func (t *Telephony) SendMessage(ctx context.Context, owner string, recipients []string, body string) (*gotoconnect.MessageResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SendErr != nil {
		return nil, t.SendErr
	}
	t.Messages = append(t.Messages, SentMessage{Owner: owner, Recipients: append([]string(nil), recipients...), Body: body})
	status := t.Status
	if status == "" {
		status = "sent"
	}
	id := fmt.Sprintf("mock-msg-%d", len(t.Messages))
	log.Debug().Str("messageID", id).Str("owner", owner).Msg("Mock GoTo SMS sent")
	return &gotoconnect.MessageResult{ID: id, Status: status}, nil
}

func (t *Telephony) InitiateCall(ctx context.Context, from, to, userID string) (*gotoconnect.CallResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CallErr != nil {
		return nil, t.CallErr
	}
	t.Calls = append(t.Calls, PlacedCall{From: from, To: to, UserID: userID})
	method := t.Method
	if method == "" {
		method = gotoconnect.MethodAPI
	}
	res := &gotoconnect.CallResult{Method: method, Timestamp: time.Now().UTC()}
	if method == gotoconnect.MethodAPI {
		res.CallID = "mock-call-" + uuid.NewString()
		res.SessionID = "mock-session-" + uuid.NewString()[:8]
	}
	log.Debug().Str("callID", res.CallID).Str("method", method).Msg("Mock GoTo call placed")
	return res, nil
}

// SentCount returns the number of recorded messages.
func (t *Telephony) SentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Messages)
}

// Note records one CreateNote call.
type Note struct {
	CandidateID string
	Text        string
}

// ATS is a JobDiva double.
type ATS struct {
	mu         sync.Mutex
	Notes      []Note
	Candidates map[string]*jobdiva.Candidate // keyed by E.164 phone
	Lookups    int

	NoteErr   error
	LookupErr error
}

// NewATS seeds an ATS with candidates keyed by phone.
func NewATS(candidates map[string]*jobdiva.Candidate) *ATS {
	if candidates == nil {
		candidates = map[string]*jobdiva.Candidate{}
	}
	return &ATS{Candidates: candidates}
}

func (a *ATS) CreateNote(ctx context.Context, candidateID, text string) (*jobdiva.NoteResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.NoteErr != nil {
		return nil, a.NoteErr
	}
	a.Notes = append(a.Notes, Note{CandidateID: candidateID, Text: text})
	id := fmt.Sprintf("mock-note-%d", len(a.Notes))
	log.Debug().Str("noteID", id).Str("candidateID", candidateID).Msg("Mock JobDiva note created")
	return &jobdiva.NoteResult{NoteID: id}, nil
}

func (a *ATS) FindCandidateByPhone(ctx context.Context, phone string) (*jobdiva.Candidate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Lookups++
	if a.LookupErr != nil {
		return nil, a.LookupErr
	}
	c, ok := a.Candidates[phone]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

// NoteCount returns the number of recorded notes.
func (a *ATS) NoteCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Notes)
}

// LastNote returns the most recent note, or a zero Note.
func (a *ATS) LastNote() Note {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.Notes) == 0 {
		return Note{}
	}
	return a.Notes[len(a.Notes)-1]
}
