package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/adapters/gotoconnect"
	"goto-jobdiva-bridge/internal/apperr"
	"goto-jobdiva-bridge/internal/events"
	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/pkg/phone"
)

// DefaultIdentity is the GoTo line used when a recruiter has no active mapping.
type DefaultIdentity struct {
	PhoneNumber string
	UserID      string
}

// ReconcilerDeps wires a Reconciler.
type ReconcilerDeps struct {
	Telephony Telephony
	ATS       ATS
	Mappings  MappingLookup
	Logs      LogWriter
	Publisher events.Publisher
	Default   DefaultIdentity
}

// Reconciler turns outbound sends and GoTo webhooks into JobDiva notes and interaction logs.
type Reconciler struct {
	telephony Telephony
	ats       ATS
	mappings  MappingLookup
	logs      LogWriter
	publisher events.Publisher
	def       DefaultIdentity
	now       func() time.Time
}

// NewReconciler validates deps. A nil Publisher publishes nothing.
func NewReconciler(deps ReconcilerDeps) (*Reconciler, error) {
	if deps.Telephony == nil || deps.ATS == nil || deps.Mappings == nil || deps.Logs == nil {
		return nil, fmt.Errorf("reconciler requires telephony, ATS, mapping and log dependencies")
	}
	pub := deps.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	def := deps.Default
	def.PhoneNumber = phone.NormalizeE164(def.PhoneNumber)
	return &Reconciler{
		telephony: deps.Telephony,
		ats:       deps.ATS,
		mappings:  deps.Mappings,
		logs:      deps.Logs,
		publisher: pub,
		def:       def,
		now:       time.Now,
	}, nil
}

// OutboundSMS is a recruiter-initiated text to a candidate.
type OutboundSMS struct {
	CandidateID    string
	CandidateName  string
	CandidatePhone string
	RecruiterID    string
	RecruiterName  string
	Message        string
}

// OutboundCall is a recruiter-initiated call to a candidate.
type OutboundCall struct {
	CandidateID    string
	CandidateName  string
	CandidatePhone string
	RecruiterID    string
	RecruiterName  string
}

// OutboundResult reports a completed send. The send itself always succeeded;
// Log.NoteCreated and Log.NoteError describe the JobDiva side.
type OutboundResult struct {
	Log        *models.InteractionLog
	Warnings   []string
	MessageID  string
	CallID     string
	CallMethod string
	TelURI     string
}

// UnrecordedSendError is returned when GoTo accepted the message or call but the log could not be stored.
// RemoteID is the GoTo message or call id.
type UnrecordedSendError struct {
	RemoteID string
	Err      error
}

func (e *UnrecordedSendError) Error() string {
	return fmt.Sprintf("sent (remote id %q) but not recorded: %v", e.RemoteID, e.Err)
}

func (e *UnrecordedSendError) Unwrap() error { return e.Err }

// MessageEvent is a GoTo SMS webhook delivery.
type MessageEvent struct {
	MessageID string
	From      string
	To        string
	Body      string
	Direction models.Direction
	Status    string
	Timestamp string
}

// CallEvent is a GoTo call lifecycle webhook delivery.
type CallEvent struct {
	CallID          string
	SessionID       string
	From            string
	To              string
	Direction       models.Direction
	CallResult      string
	DurationSeconds *int
	StartTime       string
	EndTime         string
}

// EventResult reports what a webhook did to the log.
type EventResult struct {
	Log    *models.InteractionLog
	Merged bool
}

type recruiterIdentity struct {
	phone   string
	userID  string
	warning string
}

// resolveSender finds the GoTo line to send from, falling back to the default identity.
func (r *Reconciler) resolveSender(ctx context.Context, recruiterID, recruiterName string) (recruiterIdentity, error) {
	key := recruiterID
	if key == "" {
		key = recruiterName
	}
	m, err := r.mappings.FindActiveByRecruiterKey(ctx, key)
	if err != nil {
		return recruiterIdentity{}, apperr.Internal("mapping lookup", err)
	}
	if m != nil {
		log.Debug().Str("recruiterID", m.RecruiterID).Str("phone", m.TelephonyPhoneE164).Msg("Resolved recruiter mapping")
		return recruiterIdentity{phone: m.TelephonyPhoneE164, userID: m.TelephonyUserID}, nil
	}

	warning := fmt.Sprintf("no active mapping for recruiter %q; using default GoTo number %s", key, r.def.PhoneNumber)
	log.Warn().Str("recruiterKey", key).Str("defaultPhone", r.def.PhoneNumber).Msg("No recruiter mapping found, falling back to default GoTo identity")
	return recruiterIdentity{phone: r.def.PhoneNumber, userID: r.def.UserID, warning: warning}, nil
}

// recruiterByNumber resolves the recruiter owning a GoTo number. Misses yield the sentinel name.
func (r *Reconciler) recruiterByNumber(ctx context.Context, number string) (id *string, name string, err error) {
	m, err := r.mappings.FindActiveByTelephonyNumber(ctx, number)
	if err != nil {
		return nil, "", apperr.Internal("mapping lookup", err)
	}
	if m == nil {
		log.Info().Str("phone", number).Msg("No active recruiter mapping for number")
		return nil, models.UnknownRecruiter, nil
	}
	return models.StringPtr(m.RecruiterID), m.RecruiterDisplayName, nil
}

// candidateByPhone resolves a candidate. Misses and lookup failures yield the sentinel name.
func (r *Reconciler) candidateByPhone(ctx context.Context, number string) (id *string, name string) {
	c, err := r.ats.FindCandidateByPhone(ctx, number)
	if err != nil {
		log.Error().Err(err).Str("phone", number).Msg("Candidate lookup failed, continuing as unknown candidate")
		return nil, models.UnknownCandidate
	}
	if c == nil || c.ID == "" {
		log.Warn().Str("phone", number).Msg("No candidate found for phone")
		return nil, models.UnknownCandidate
	}
	name = c.Name
	if name == "" {
		name = models.UnknownCandidate
	}
	return models.StringPtr(c.ID), name
}

// createNote is best-effort: failures are recorded on l, never returned.
func (r *Reconciler) createNote(ctx context.Context, l *models.InteractionLog, text string) {
	if l.CandidateID == nil {
		return
	}
	res, err := r.ats.CreateNote(ctx, *l.CandidateID, text)
	if err != nil {
		log.Error().Err(err).Str("candidateID", *l.CandidateID).Msg("Failed to create JobDiva note")
		l.NoteError = models.StringPtr(err.Error())
		r.forgetStaleCandidate(l.CandidatePhone, err)
		return
	}
	l.NoteCreated = true
	if res != nil {
		l.NoteID = models.StringPtr(res.NoteID)
	}
}

// forgetStaleCandidate drops a cached phone lookup once JobDiva reports the candidate gone.
func (r *Reconciler) forgetStaleCandidate(phone string, err error) {
	var re *apperr.RemoteAPIError
	if !errors.As(err, &re) || re.StatusCode != http.StatusNotFound {
		return
	}
	if f, ok := r.ats.(CandidateForgetter); ok && phone != "" {
		log.Info().Str("phone", phone).Msg("Dropping cached candidate lookup after note 404")
		f.Forget(phone)
	}
}

func (r *Reconciler) publish(ctx context.Context, eventType string, l *models.InteractionLog) {
	if err := r.publisher.Publish(ctx, eventType, l); err != nil {
		log.Error().Err(err).Str("eventType", eventType).Str("logID", l.ID).Msg("Failed to publish interaction event")
	}
}

func requireField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &apperr.ValidationError{Field: field, Msg: "is required"}
	}
	return nil
}

// RecordOutboundSMS sends a text through GoTo, notes it in JobDiva and logs it.
// A failed send aborts before anything is written.
func (r *Reconciler) RecordOutboundSMS(ctx context.Context, req OutboundSMS) (*OutboundResult, error) {
	if err := requireField("candidate_phone", req.CandidatePhone); err != nil {
		return nil, err
	}
	if err := requireField("message", req.Message); err != nil {
		return nil, err
	}

	candidatePhone := phone.NormalizeE164(req.CandidatePhone)
	sender, err := r.resolveSender(ctx, req.RecruiterID, req.RecruiterName)
	if err != nil {
		return nil, err
	}

	sent, err := r.telephony.SendMessage(ctx, sender.phone, []string{candidatePhone}, req.Message)
	if err != nil {
		return nil, err
	}
	at := r.now().UTC()

	l := &models.InteractionLog{
		Kind:               models.KindSMS,
		Direction:          models.DirectionOutbound,
		CandidateID:        models.StringPtr(req.CandidateID),
		CandidateName:      req.CandidateName,
		CandidatePhone:     candidatePhone,
		RecruiterID:        models.StringPtr(req.RecruiterID),
		RecruiterName:      req.RecruiterName,
		RecruiterPhone:     sender.phone,
		TelephonyMessageID: models.StringPtr(sent.ID),
		MessageBody:        models.StringPtr(req.Message),
		Status:             sent.Status,
		Timestamp:          at,
	}
	r.createNote(ctx, l, outboundSMSNote(req.RecruiterName, sender.phone, candidatePhone, req.Message, at))

	if err := r.logs.Insert(ctx, l); err != nil {
		return nil, &UnrecordedSendError{RemoteID: sent.ID, Err: apperr.Internal("store interaction log", err)}
	}
	r.publish(ctx, events.InteractionCreated, l)

	log.Info().Str("logID", l.ID).Str("messageID", sent.ID).Bool("noteCreated", l.NoteCreated).Msg("Outbound SMS recorded")
	res := &OutboundResult{Log: l, MessageID: sent.ID}
	if sender.warning != "" {
		res.Warnings = append(res.Warnings, sender.warning)
	}
	return res, nil
}

// RecordOutboundCall starts a call through GoTo (or hands back a tel: URI), notes the attempt and logs it as initiated.
func (r *Reconciler) RecordOutboundCall(ctx context.Context, req OutboundCall) (*OutboundResult, error) {
	if err := requireField("candidate_phone", req.CandidatePhone); err != nil {
		return nil, err
	}

	candidatePhone := phone.NormalizeE164(req.CandidatePhone)
	caller, err := r.resolveSender(ctx, req.RecruiterID, req.RecruiterName)
	if err != nil {
		return nil, err
	}

	call, err := r.telephony.InitiateCall(ctx, caller.phone, candidatePhone, caller.userID)
	if err != nil {
		return nil, err
	}
	at := call.Timestamp
	if at.IsZero() {
		at = r.now().UTC()
	}

	l := &models.InteractionLog{
		Kind:               models.KindCall,
		Direction:          models.DirectionOutbound,
		CandidateID:        models.StringPtr(req.CandidateID),
		CandidateName:      req.CandidateName,
		CandidatePhone:     candidatePhone,
		RecruiterID:        models.StringPtr(req.RecruiterID),
		RecruiterName:      req.RecruiterName,
		RecruiterPhone:     caller.phone,
		TelephonyCallID:    models.StringPtr(call.CallID),
		TelephonySessionID: models.StringPtr(call.SessionID),
		Status:             models.StatusInitiated,
		Timestamp:          at,
	}
	r.createNote(ctx, l, outboundCallAttemptNote(req.RecruiterName, caller.phone, candidatePhone, call.CallID, at))

	stored, merged, err := r.logs.UpsertCall(ctx, l)
	if err != nil {
		return nil, &UnrecordedSendError{RemoteID: call.CallID, Err: apperr.Internal("store interaction log", err)}
	}
	if merged {
		r.publish(ctx, events.InteractionMerged, stored)
	} else {
		r.publish(ctx, events.InteractionCreated, stored)
	}

	res := &OutboundResult{Log: stored, CallID: call.CallID, CallMethod: call.Method}
	if call.Method == gotoconnect.MethodTelFallback {
		res.TelURI = "tel:" + candidatePhone
	}
	if caller.warning != "" {
		res.Warnings = append(res.Warnings, caller.warning)
	}
	log.Info().Str("logID", stored.ID).Str("callID", call.CallID).Str("method", call.Method).Bool("noteCreated", stored.NoteCreated).Msg("Outbound call recorded")
	return res, nil
}

// ReconcileMessageEvent records one SMS webhook delivery. Every delivery is its own log row.
func (r *Reconciler) ReconcileMessageEvent(ctx context.Context, ev MessageEvent) (*EventResult, error) {
	if !ev.Direction.Valid() {
		return nil, &apperr.ValidationError{Field: "direction", Msg: fmt.Sprintf("must be inbound or outbound, got %q", ev.Direction)}
	}
	from := phone.NormalizeE164(ev.From)
	to := phone.NormalizeE164(ev.To)
	log.Info().Str("direction", string(ev.Direction)).Str("from", from).Str("to", to).Msg("Processing SMS webhook")

	candidatePhone, recruiterPhone := from, to
	if ev.Direction == models.DirectionOutbound {
		candidatePhone, recruiterPhone = to, from
	}

	recruiterID, recruiterName, err := r.recruiterByNumber(ctx, recruiterPhone)
	if err != nil {
		return nil, err
	}
	candidateID, candidateName := r.candidateByPhone(ctx, candidatePhone)

	l := &models.InteractionLog{
		Kind:               models.KindSMS,
		Direction:          ev.Direction,
		CandidateID:        candidateID,
		CandidateName:      candidateName,
		CandidatePhone:     candidatePhone,
		RecruiterID:        recruiterID,
		RecruiterName:      recruiterName,
		RecruiterPhone:     recruiterPhone,
		TelephonyMessageID: models.StringPtr(ev.MessageID),
		MessageBody:        models.StringPtr(ev.Body),
		Status:             ev.Status,
	}
	r.createNote(ctx, l, messageEventNote(ev, from, to, recruiterName))

	if err := r.logs.Insert(ctx, l); err != nil {
		return nil, apperr.Internal("store interaction log", err)
	}
	r.publish(ctx, events.InteractionCreated, l)
	log.Info().Str("logID", l.ID).Str("messageID", ev.MessageID).Bool("noteCreated", l.NoteCreated).Msg("SMS webhook recorded")
	return &EventResult{Log: l}, nil
}

// ReconcileCallEvent records a call webhook, merging into the row for the same call id when one exists.
func (r *Reconciler) ReconcileCallEvent(ctx context.Context, ev CallEvent) (*EventResult, error) {
	if !ev.Direction.Valid() {
		return nil, &apperr.ValidationError{Field: "direction", Msg: fmt.Sprintf("must be inbound or outbound, got %q", ev.Direction)}
	}
	if err := requireField("call_id", ev.CallID); err != nil {
		return nil, err
	}
	from := phone.NormalizeE164(ev.From)
	to := phone.NormalizeE164(ev.To)
	log.Info().Str("direction", string(ev.Direction)).Str("from", from).Str("to", to).Str("callID", ev.CallID).Msg("Processing call webhook")

	candidatePhone, recruiterPhone := from, to
	if ev.Direction == models.DirectionOutbound {
		candidatePhone, recruiterPhone = to, from
	}

	recruiterID, recruiterName, err := r.recruiterByNumber(ctx, recruiterPhone)
	if err != nil {
		return nil, err
	}
	candidateID, candidateName := r.candidateByPhone(ctx, candidatePhone)

	l := &models.InteractionLog{
		Kind:                models.KindCall,
		Direction:           ev.Direction,
		CandidateID:         candidateID,
		CandidateName:       candidateName,
		CandidatePhone:      candidatePhone,
		RecruiterID:         recruiterID,
		RecruiterName:       recruiterName,
		RecruiterPhone:      recruiterPhone,
		TelephonyCallID:     models.StringPtr(ev.CallID),
		TelephonySessionID:  models.StringPtr(ev.SessionID),
		CallDurationSeconds: ev.DurationSeconds,
		CallResult:          models.StringPtr(ev.CallResult),
		Status:              models.StatusCompleted,
	}
	r.createNote(ctx, l, callEventNote(ev, from, to, recruiterName))

	stored, merged, err := r.logs.UpsertCall(ctx, l)
	if err != nil {
		return nil, apperr.Internal("store interaction log", err)
	}
	if merged {
		r.publish(ctx, events.InteractionMerged, stored)
	} else {
		r.publish(ctx, events.InteractionCreated, stored)
	}
	log.Info().Str("logID", stored.ID).Str("callID", ev.CallID).Bool("merged", merged).Bool("noteCreated", stored.NoteCreated).Msg("Call webhook reconciled")
	return &EventResult{Log: stored, Merged: merged}, nil
}
