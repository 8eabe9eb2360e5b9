package gotoconnect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"goto-jobdiva-bridge/internal/apperr"
	"goto-jobdiva-bridge/pkg/httputil"
)

type staticTokens struct {
	token       string
	err         error
	invalidated atomic.Int32
}

func (s *staticTokens) Token(ctx context.Context) (string, error) { return s.token, s.err }
func (s *staticTokens) Invalidate()                                { s.invalidated.Add(1) }

func newTestClient(t *testing.T, url, callControl string, tokens TokenSource) *Client {
	t.Helper()
	c, err := NewClient(httputil.NewClient(url, time.Second), tokens, callControl)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messaging/v1/messages" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var p SendMessagePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.OwnerPhoneNumber != "+17323531312" || len(p.ContactPhoneNumbers) != 1 || p.ContactPhoneNumbers[0] != "+14155552671" || p.Body != "hello" {
			t.Fatalf("unexpected payload %+v", p)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "api", &staticTokens{token: "tok"})
	res, err := c.SendMessage(context.Background(), "+17323531312", []string{"+14155552671"}, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.ID != "msg-1" || res.Status != "sent" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSendMessageRejectsEmptyRecipients(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", "api", &staticTokens{token: "tok"})
	_, err := c.SendMessage(context.Background(), "+1", nil, "x")
	if apperr.Kind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendMessageRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`nope`))
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "tok"}
	c := newTestClient(t, srv.URL, "api", tokens)
	_, err := c.SendMessage(context.Background(), "+1", []string{"+2"}, "x")
	var re *apperr.RemoteAPIError
	if !errors.As(err, &re) || re.StatusCode != http.StatusUnauthorized || re.Body != "nope" {
		t.Fatalf("expected remote error with status and body, got %v", err)
	}
	if tokens.invalidated.Load() != 1 {
		t.Fatalf("401 must invalidate the cached token")
	}
}

func TestSendMessageTokenErrorPropagates(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	authErr := &apperr.AuthError{Service: "goto", Msg: "not configured"}
	c := newTestClient(t, srv.URL, "api", &staticTokens{err: authErr})
	_, err := c.SendMessage(context.Background(), "+1", []string{"+2"}, "x")
	if apperr.Kind(err) != apperr.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("no request may be sent without a token")
	}
}

func TestInitiateCallAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls/v2/calls" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var p CallPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		if p.DialString != "+14155552671" || p.From.PhoneNumber != "+14155550001" || p.UserKey != "u1" {
			t.Fatalf("unexpected payload %+v", p)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"callId":"abc123","sessionId":"s1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "api", &staticTokens{token: "tok"})
	res, err := c.InitiateCall(context.Background(), "+14155550001", "+14155552671", "u1")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.CallID != "abc123" || res.SessionID != "s1" || res.Method != MethodAPI || res.Timestamp.IsZero() {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInitiateCallTelFallbackMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "tel", &staticTokens{token: "tok"})
	res, err := c.InitiateCall(context.Background(), "+1", "+2", "")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.Method != MethodTelFallback || res.CallID != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if hits.Load() != 0 {
		t.Fatalf("tel fallback must not call the API")
	}
}
