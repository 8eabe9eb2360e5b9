package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"goto-jobdiva-bridge/internal/adapters/fake"
	"goto-jobdiva-bridge/internal/adapters/gotoconnect"
	"goto-jobdiva-bridge/internal/adapters/jobdiva"
	"goto-jobdiva-bridge/internal/apperr"
	"goto-jobdiva-bridge/internal/db"
	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, l *models.InteractionLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+l.ID)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type reconcilerFixture struct {
	r         *Reconciler
	tel       *fake.Telephony
	ats       *fake.ATS
	mappings  *store.MappingStore
	logs      *store.LogStore
	publisher *recordingPublisher
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	database, err := db.InitDB("sqlite", dsn)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	sqlDB, _ := database.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.MigrateDB(database, db.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mappings, _ := store.NewMappingStore(database)
	logs, _ := store.NewLogStore(database)
	f := &reconcilerFixture{
		tel:       &fake.Telephony{},
		ats:       fake.NewATS(nil),
		mappings:  mappings,
		logs:      logs,
		publisher: &recordingPublisher{},
	}
	f.r, err = NewReconciler(ReconcilerDeps{
		Telephony: f.tel,
		ATS:       f.ats,
		Mappings:  mappings,
		Logs:      logs,
		Publisher: f.publisher,
		Default:   DefaultIdentity{PhoneNumber: "+17323531312", UserID: "default-user"},
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	return f
}

func (f *reconcilerFixture) addMapping(t *testing.T, id, name, number string) {
	t.Helper()
	if err := f.mappings.Create(context.Background(), &models.RecruiterMapping{
		RecruiterID:          id,
		RecruiterDisplayName: name,
		TelephonyUserID:      "goto-" + id,
		TelephonyPhoneE164:   number,
	}); err != nil {
		t.Fatalf("create mapping: %v", err)
	}
}

func (f *reconcilerFixture) allLogs(t *testing.T) []models.InteractionLog {
	t.Helper()
	rows, err := f.logs.List(context.Background(), store.LogFilter{})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	return rows
}

func TestOutboundSMSWithoutMappingFallsBackToDefault(t *testing.T) {
	f := newReconcilerFixture(t)

	res, err := f.r.RecordOutboundSMS(context.Background(), OutboundSMS{
		CandidateName:  "Bob",
		CandidatePhone: "4155552671",
		RecruiterName:  "Nobody",
		Message:        "Hi Bob",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	l := res.Log
	if l.RecruiterPhone != "+17323531312" || l.CandidatePhone != "+14155552671" {
		t.Fatalf("unexpected phones recruiter=%s candidate=%s", l.RecruiterPhone, l.CandidatePhone)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no active mapping") {
		t.Fatalf("fallback must be flagged, got %v", res.Warnings)
	}
	if l.NoteCreated || l.NoteError != nil || f.ats.NoteCount() != 0 {
		t.Fatalf("no note may be attempted without a candidate id: %+v", l)
	}
	if l.Direction != models.DirectionOutbound || l.Status != "sent" || l.Kind != models.KindSMS {
		t.Fatalf("unexpected log %+v", l)
	}
	if f.tel.Messages[0].Owner != "+17323531312" || f.tel.Messages[0].Recipients[0] != "+14155552671" {
		t.Fatalf("unexpected send %+v", f.tel.Messages[0])
	}
	if rows := f.allLogs(t); len(rows) != 1 || rows[0].ID != l.ID {
		t.Fatalf("expected exactly one stored log, got %d", len(rows))
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0] != "interaction.created:"+l.ID {
		t.Fatalf("unexpected events %v", f.publisher.events)
	}
}

func TestOutboundSMSUsesMappingAndCreatesNote(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addMapping(t, "r1", "Alice", "+14155550001")
	f.tel.Status = "queued"

	long := strings.Repeat("x", 120)
	res, err := f.r.RecordOutboundSMS(context.Background(), OutboundSMS{
		CandidateID:    "c-1",
		CandidateName:  "Bob",
		CandidatePhone: "(415) 555-2671",
		RecruiterID:    "r1",
		RecruiterName:  "Alice",
		Message:        long,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(res.Warnings) != 0 || res.Log.RecruiterPhone != "+14155550001" {
		t.Fatalf("mapping not used: %+v %v", res.Log, res.Warnings)
	}
	if !res.Log.NoteCreated || models.Deref(res.Log.NoteID) != "mock-note-1" || res.Log.Status != "queued" {
		t.Fatalf("unexpected log %+v", res.Log)
	}

	note := f.ats.LastNote()
	if note.CandidateID != "c-1" {
		t.Fatalf("note for wrong candidate %q", note.CandidateID)
	}
	wantPrefix := "[GoTo][SMS][Outbound] Recruiter: Alice (+14155550001) → Candidate: +14155552671\nMessage: \"" + strings.Repeat("x", 100) + "...\"\nTime: "
	if !strings.HasPrefix(note.Text, wantPrefix) {
		t.Fatalf("unexpected note text:\n%s", note.Text)
	}
	if models.Deref(res.Log.MessageBody) != long {
		t.Fatalf("log must keep the full message body")
	}
}

func TestOutboundSMSNoteFailureStillSucceeds(t *testing.T) {
	f := newReconcilerFixture(t)
	f.ats.NoteErr = &apperr.RemoteAPIError{Service: "jobdiva", Op: "CreateNote", StatusCode: 503, Body: "down"}

	res, err := f.r.RecordOutboundSMS(context.Background(), OutboundSMS{CandidateID: "c-1", CandidatePhone: "4155552671", RecruiterName: "A", Message: "hi"})
	if err != nil {
		t.Fatalf("note failure must not fail the send: %v", err)
	}
	if res.Log.NoteCreated || models.Deref(res.Log.NoteError) != "jobdiva CreateNote error: status 503, body: down" {
		t.Fatalf("note failure not recorded: %+v", res.Log)
	}
	if rows := f.allLogs(t); len(rows) != 1 {
		t.Fatalf("log must still be written, got %d rows", len(rows))
	}
}

func TestOutboundSMSSendFailureWritesNothing(t *testing.T) {
	f := newReconcilerFixture(t)
	f.tel.SendErr = &apperr.AuthError{Service: "goto", Msg: "token refresh failed", StatusCode: 401}

	_, err := f.r.RecordOutboundSMS(context.Background(), OutboundSMS{CandidateID: "c-1", CandidatePhone: "4155552671", Message: "hi"})
	if apperr.Kind(err) != apperr.KindAuth {
		t.Fatalf("expected auth error to propagate, got %v", err)
	}
	if f.ats.NoteCount() != 0 || len(f.allLogs(t)) != 0 || len(f.publisher.events) != 0 {
		t.Fatalf("nothing may be written after a failed send")
	}
}

type brokenLogs struct{}

func (brokenLogs) Insert(ctx context.Context, l *models.InteractionLog) error {
	return errors.New("disk full")
}

func (brokenLogs) UpsertCall(ctx context.Context, l *models.InteractionLog) (*models.InteractionLog, bool, error) {
	return nil, false, errors.New("disk full")
}

func TestOutboundSendReportsSentWhenLogWriteFails(t *testing.T) {
	f := newReconcilerFixture(t)
	r, err := NewReconciler(ReconcilerDeps{
		Telephony: f.tel,
		ATS:       f.ats,
		Mappings:  f.mappings,
		Logs:      brokenLogs{},
		Default:   DefaultIdentity{PhoneNumber: "+17323531312", UserID: "default-user"},
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	_, err = r.RecordOutboundSMS(context.Background(), OutboundSMS{CandidatePhone: "4155552671", Message: "hi"})
	var unrecorded *UnrecordedSendError
	if !errors.As(err, &unrecorded) || unrecorded.RemoteID != "mock-msg-1" || apperr.Kind(err) != apperr.KindInternal {
		t.Fatalf("expected unrecorded send error, got %v", err)
	}

	_, err = r.RecordOutboundCall(context.Background(), OutboundCall{CandidatePhone: "4155552671"})
	if !errors.As(err, &unrecorded) || !strings.HasPrefix(unrecorded.RemoteID, "mock-call-") {
		t.Fatalf("expected unrecorded call error, got %v", err)
	}
	if f.tel.SentCount() != 1 || len(f.tel.Calls) != 1 {
		t.Fatalf("both remote steps should have run")
	}
}

func TestOutboundSMSValidation(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.r.RecordOutboundSMS(context.Background(), OutboundSMS{Message: "hi"}); apperr.Kind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.r.RecordOutboundSMS(context.Background(), OutboundSMS{CandidatePhone: "4155552671", Message: "  "}); apperr.Kind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.tel.SentCount() != 0 {
		t.Fatalf("invalid requests must not be sent")
	}
}

func TestInboundSMSWebhooksNeverMerge(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addMapping(t, "r1", "Alice", "+14155550001")
	ev := MessageEvent{MessageID: "m1", From: "4155552671", To: "+1 (415) 555-0001", Body: "hello", Direction: models.DirectionInbound, Status: "received", Timestamp: "2026-01-01T00:00:00Z"}

	first, err := f.r.ReconcileMessageEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.r.ReconcileMessageEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Log.ID == second.Log.ID || first.Merged || second.Merged {
		t.Fatalf("sms deliveries must be distinct rows")
	}
	if rows := f.allLogs(t); len(rows) != 2 {
		t.Fatalf("expected two rows, got %d", len(rows))
	}
	if first.Log.CandidatePhone != "+14155552671" || first.Log.RecruiterPhone != "+14155550001" || first.Log.RecruiterName != "Alice" {
		t.Fatalf("inbound direction resolved wrongly: %+v", first.Log)
	}
	if first.Log.CandidateName != models.UnknownCandidate || first.Log.CandidateID != nil {
		t.Fatalf("unknown candidate expected: %+v", first.Log)
	}
}

type forgettingATS struct {
	*fake.ATS
	forgotten []string
}

func (a *forgettingATS) Forget(phone string) { a.forgotten = append(a.forgotten, phone) }

func TestNoteNotFoundDropsCachedCandidate(t *testing.T) {
	f := newReconcilerFixture(t)
	ats := &forgettingATS{ATS: fake.NewATS(map[string]*jobdiva.Candidate{"+14155552671": {ID: "c-gone", Name: "Bob"}})}
	r, err := NewReconciler(ReconcilerDeps{
		Telephony: f.tel,
		ATS:       ats,
		Mappings:  f.mappings,
		Logs:      f.logs,
		Default:   DefaultIdentity{PhoneNumber: "+17323531312", UserID: "default-user"},
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	ev := MessageEvent{MessageID: "m1", From: "4155552671", To: "+17323531312", Body: "hello", Direction: models.DirectionInbound}

	ats.NoteErr = &apperr.RemoteAPIError{Service: "jobdiva", Op: "CreateNote", StatusCode: 503, Body: "down"}
	if _, err := r.ReconcileMessageEvent(context.Background(), ev); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(ats.forgotten) != 0 {
		t.Fatalf("a transient failure must keep the cached lookup, forgot %v", ats.forgotten)
	}

	ats.NoteErr = &apperr.RemoteAPIError{Service: "jobdiva", Op: "CreateNote", StatusCode: 404, Body: "no such candidate"}
	res, err := r.ReconcileMessageEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Log.NoteCreated || len(ats.forgotten) != 1 || ats.forgotten[0] != "+14155552671" {
		t.Fatalf("expected the lookup for the candidate phone to be dropped, got %v", ats.forgotten)
	}
}

func TestOutboundSMSStatusWebhookReversesParticipants(t *testing.T) {
	f := newReconcilerFixture(t)
	f.ats.Candidates["+14155552671"] = &jobdiva.Candidate{ID: "c-9", Name: "Bob"}

	res, err := f.r.ReconcileMessageEvent(context.Background(), MessageEvent{
		MessageID: "m2", From: "+14155550001", To: "+14155552671", Direction: models.DirectionOutbound, Status: "delivered", Timestamp: "T1",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	l := res.Log
	if l.CandidatePhone != "+14155552671" || l.RecruiterPhone != "+14155550001" {
		t.Fatalf("outbound direction resolved wrongly: %+v", l)
	}
	if l.RecruiterName != models.UnknownRecruiter || l.RecruiterID != nil {
		t.Fatalf("unmapped recruiter must use the sentinel: %+v", l)
	}
	if models.Deref(l.CandidateID) != "c-9" || !l.NoteCreated || l.Status != "delivered" {
		t.Fatalf("unexpected log %+v", l)
	}
	want := "[GoTo][SMS][Outbound Status] Recruiter: Unknown Recruiter (+14155550001) → Candidate: +14155552671\nStatus: delivered\nUpdated: T1"
	if got := f.ats.LastNote().Text; got != want {
		t.Fatalf("note text:\n%s\nwant:\n%s", got, want)
	}
}

func TestMessageEventRejectsUnknownDirection(t *testing.T) {
	f := newReconcilerFixture(t)
	_, err := f.r.ReconcileMessageEvent(context.Background(), MessageEvent{From: "1", To: "2", Direction: "sideways"})
	if apperr.Kind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.r.ReconcileCallEvent(context.Background(), CallEvent{CallID: "x", Direction: ""}); apperr.Kind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitiatedCallThenWebhookMergesIntoOneRow(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addMapping(t, "r1", "Alice", "+14155550001")

	started, err := f.r.RecordOutboundCall(context.Background(), OutboundCall{
		CandidateID: "c-1", CandidateName: "Bob", CandidatePhone: "4155552671", RecruiterID: "r1", RecruiterName: "Alice",
	})
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if started.Log.Status != models.StatusInitiated || !started.Log.NoteCreated || started.CallMethod != gotoconnect.MethodAPI {
		t.Fatalf("unexpected initiated log %+v", started.Log)
	}
	if f.tel.Calls[0].UserID != "goto-r1" || f.tel.Calls[0].From != "+14155550001" {
		t.Fatalf("mapping identity not used for the call: %+v", f.tel.Calls[0])
	}
	if !strings.Contains(f.ats.LastNote().Text, "[GoTo][Call][Outbound Attempt] Recruiter: Alice (+14155550001) → Candidate: +14155552671") ||
		!strings.HasSuffix(f.ats.LastNote().Text, "Status: Initiated\nCall ID: "+started.CallID) {
		t.Fatalf("unexpected attempt note:\n%s", f.ats.LastNote().Text)
	}
	noteID := models.Deref(started.Log.NoteID)

	duration := 61
	res, err := f.r.ReconcileCallEvent(context.Background(), CallEvent{
		CallID: started.CallID, From: "+14155550001", To: "+14155552671", Direction: models.DirectionOutbound,
		CallResult: "answered", DurationSeconds: &duration, StartTime: "T0",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Merged || res.Log.ID != started.Log.ID {
		t.Fatalf("expected merge into the initiated row")
	}
	if res.Log.Status != models.StatusCompleted || *res.Log.CallDurationSeconds != 61 || models.Deref(res.Log.CallResult) != "answered" {
		t.Fatalf("lifecycle not merged: %+v", res.Log)
	}
	if !res.Log.NoteCreated || models.Deref(res.Log.NoteID) != noteID {
		t.Fatalf("attempt note must be preserved: %+v", res.Log)
	}
	if rows := f.allLogs(t); len(rows) != 1 {
		t.Fatalf("expected one row per call, got %d", len(rows))
	}
	if got := f.publisher.events; len(got) != 2 || !strings.HasPrefix(got[1], "interaction.merged:") {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestOutboundCallsAcrossRestartsGetSeparateRows(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	first, err := f.r.RecordOutboundCall(ctx, OutboundCall{CandidateID: "c-1", CandidateName: "Bob", CandidatePhone: "4155552671"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := f.r.ReconcileCallEvent(ctx, CallEvent{
		CallID: first.CallID, From: "+17323531312", To: "+14155552671", Direction: models.DirectionOutbound, CallResult: "answered",
	}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// A new process gets a fresh telephony double over the same database.
	restarted, err := NewReconciler(ReconcilerDeps{
		Telephony: &fake.Telephony{},
		ATS:       f.ats,
		Mappings:  f.mappings,
		Logs:      f.logs,
		Default:   DefaultIdentity{PhoneNumber: "+17323531312", UserID: "default-user"},
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	second, err := restarted.RecordOutboundCall(ctx, OutboundCall{CandidateID: "c-2", CandidateName: "Carol", CandidatePhone: "4155552672"})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if second.CallID == first.CallID || second.Log.ID == first.Log.ID {
		t.Fatalf("second call reused the first call's identity: %s %s", second.CallID, second.Log.ID)
	}
	if second.Log.Status != models.StatusInitiated || second.Log.CandidateName != "Carol" {
		t.Fatalf("unexpected second log %+v", second.Log)
	}
	if rows := f.allLogs(t); len(rows) != 2 {
		t.Fatalf("expected two rows, got %d", len(rows))
	}
}

func TestInboundCallWithoutPriorLogCreatesCompletedRow(t *testing.T) {
	f := newReconcilerFixture(t)
	f.addMapping(t, "r1", "Alice", "+14155550001")
	f.ats.Candidates["+14155552671"] = &jobdiva.Candidate{ID: "c-1", Name: "Bob"}

	res, err := f.r.ReconcileCallEvent(context.Background(), CallEvent{
		CallID: "abc123", From: "4155552671", To: "4155550001", Direction: models.DirectionInbound, CallResult: "missed", StartTime: "T0",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	l := res.Log
	if res.Merged || l.Direction != models.DirectionInbound || l.Status != models.StatusCompleted {
		t.Fatalf("unexpected log %+v", l)
	}
	if models.Deref(l.TelephonyCallID) != "abc123" || models.Deref(l.CandidateID) != "c-1" || l.CandidateName != "Bob" || l.RecruiterName != "Alice" {
		t.Fatalf("identities not resolved: %+v", l)
	}
	want := "[GoTo][Call][Inbound] Candidate: +14155552671 → Recruiter: Alice (+14155550001)\nResult: missed | Duration: N/A\nTime: T0"
	if got := f.ats.LastNote().Text; got != want {
		t.Fatalf("note text:\n%s\nwant:\n%s", got, want)
	}
}

func TestInboundCallUnknownCandidate(t *testing.T) {
	f := newReconcilerFixture(t)
	f.ats.LookupErr = errors.New("jobdiva unreachable")

	res, err := f.r.ReconcileCallEvent(context.Background(), CallEvent{CallID: "abc123", From: "4155552671", To: "4155550001", Direction: models.DirectionInbound})
	if err != nil {
		t.Fatalf("lookup failure must not fail the webhook: %v", err)
	}
	if res.Log.CandidateName != models.UnknownCandidate || res.Log.CandidateID != nil || res.Log.NoteCreated {
		t.Fatalf("unexpected log %+v", res.Log)
	}
}

func TestOutboundCallTelFallback(t *testing.T) {
	f := newReconcilerFixture(t)
	f.tel.Method = gotoconnect.MethodTelFallback

	res, err := f.r.RecordOutboundCall(context.Background(), OutboundCall{CandidatePhone: "4155552671", RecruiterName: "Nobody"})
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if res.TelURI != "tel:+14155552671" || res.CallMethod != gotoconnect.MethodTelFallback || res.CallID != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Log.TelephonyCallID != nil || len(res.Warnings) != 1 {
		t.Fatalf("unexpected log %+v warnings %v", res.Log, res.Warnings)
	}
	if f.tel.Calls[0].UserID != "default-user" {
		t.Fatalf("default identity not used: %+v", f.tel.Calls[0])
	}
	if f.ats.NoteCount() != 0 {
		t.Fatalf("no candidate id, no note")
	}
}

func TestOutboundCallFailurePropagates(t *testing.T) {
	f := newReconcilerFixture(t)
	f.tel.CallErr = &apperr.RemoteAPIError{Service: "goto", Op: "InitiateCall", StatusCode: 500, Body: "boom"}
	if _, err := f.r.RecordOutboundCall(context.Background(), OutboundCall{CandidatePhone: "4155552671"}); apperr.Kind(err) != apperr.KindRemoteAPI {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(f.allLogs(t)) != 0 {
		t.Fatalf("no log after a failed call")
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("short"); got != "short" {
		t.Fatalf("Excerpt(short) = %q", got)
	}
	exact := strings.Repeat("é", 100)
	if got := Excerpt(exact); got != exact {
		t.Fatalf("100 runes must not be truncated")
	}
	if got := Excerpt(exact + "z"); got != exact+"..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}
