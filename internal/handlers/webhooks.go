package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/internal/services"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-GoTo-Signature"

const maxWebhookBody = 1 << 20

type messageEventPayload struct {
	MessageID  string `json:"message_id"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`
	Body       string `json:"body"`
	Direction  string `json:"direction"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
}

type callEventPayload struct {
	CallID     string `json:"call_id"`
	SessionID  string `json:"session_id"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`
	Direction  string `json:"direction"`
	CallResult string `json:"call_result"`
	Duration   *int   `json:"duration"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type webhookResponse struct {
	Message          string `json:"message"`
	Processed        bool   `json:"processed"`
	InteractionLogID string `json:"interaction_log_id,omitempty"`
	Merged           bool   `json:"merged"`
}

// validSignature checks signature against the body. With no secret configured every body is accepted.
func (s *Server) validSignature(body []byte, signature string) bool {
	if s.opts.WebhookSecret == "" {
		return true
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.opts.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// readWebhook reads and authenticates the body, responding itself on failure.
func (s *Server) readWebhook(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to read request body")
		s.Respond(w, r, http.StatusInternalServerError, "Failed to read request body")
		return false
	}
	if !s.validSignature(body, r.Header.Get(SignatureHeader)) {
		hlog.FromRequest(r).Warn().Msg("Invalid webhook signature")
		s.Respond(w, r, http.StatusUnauthorized, "Invalid signature")
		return false
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(dst); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to unmarshal webhook payload")
		s.Respond(w, r, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

// MessageWebhook handles GoTo SMS events.
func (s *Server) MessageWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p messageEventPayload
		if !s.readWebhook(w, r, &p) {
			return
		}

		res, err := s.reconciler.ReconcileMessageEvent(r.Context(), services.MessageEvent{
			MessageID: p.MessageID,
			From:      p.FromNumber,
			To:        p.ToNumber,
			Body:      p.Body,
			Direction: models.Direction(strings.ToLower(p.Direction)),
			Status:    p.Status,
			Timestamp: p.Timestamp,
		})
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		s.Respond(w, r, http.StatusOK, webhookResponse{
			Message:          "Message webhook processed successfully",
			Processed:        true,
			InteractionLogID: res.Log.ID,
		})
	}
}

// CallWebhook handles GoTo call lifecycle events.
func (s *Server) CallWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p callEventPayload
		if !s.readWebhook(w, r, &p) {
			return
		}

		res, err := s.reconciler.ReconcileCallEvent(r.Context(), services.CallEvent{
			CallID:          p.CallID,
			SessionID:       p.SessionID,
			From:            p.FromNumber,
			To:              p.ToNumber,
			Direction:       models.Direction(strings.ToLower(p.Direction)),
			CallResult:      p.CallResult,
			DurationSeconds: p.Duration,
			StartTime:       p.StartTime,
			EndTime:         p.EndTime,
		})
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		s.Respond(w, r, http.StatusOK, webhookResponse{
			Message:          "Call webhook processed successfully",
			Processed:        true,
			InteractionLogID: res.Log.ID,
			Merged:           res.Merged,
		})
	}
}
