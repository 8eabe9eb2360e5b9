package handlers

import (
	"net/http"
	"time"

	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/internal/services"
	"goto-jobdiva-bridge/pkg/phone"
)

type sendSMSRequest struct {
	CandidateID    string `json:"candidate_id"`
	CandidateName  string `json:"candidate_name"`
	CandidatePhone string `json:"candidate_phone"`
	RecruiterID    string `json:"recruiter_id"`
	RecruiterName  string `json:"recruiter_name"`
	Message        string `json:"message"`
}

type sendSMSResponse struct {
	Message          string    `json:"message"`
	Sent             bool      `json:"sent"`
	InteractionLogID string    `json:"interaction_log_id"`
	GoToMessageID    string    `json:"goto_message_id,omitempty"`
	NoteCreated      bool      `json:"jobdiva_note_created"`
	NoteError        string    `json:"jobdiva_note_error,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// SendSMS sends a message on the recruiter's behalf from the browser extension.
func (s *Server) SendSMS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendSMSRequest
		if err := decodeJSON(r, &req); err != nil {
			s.RespondSendError(w, r, err)
			return
		}

		res, err := s.reconciler.RecordOutboundSMS(r.Context(), services.OutboundSMS{
			CandidateID:    req.CandidateID,
			CandidateName:  req.CandidateName,
			CandidatePhone: req.CandidatePhone,
			RecruiterID:    req.RecruiterID,
			RecruiterName:  req.RecruiterName,
			Message:        req.Message,
		})
		if err != nil {
			s.RespondSendError(w, r, err)
			return
		}

		s.Respond(w, r, http.StatusOK, sendSMSResponse{
			Message:          "SMS sent successfully",
			Sent:             true,
			InteractionLogID: res.Log.ID,
			GoToMessageID:    res.MessageID,
			NoteCreated:      res.Log.NoteCreated,
			NoteError:        models.Deref(res.Log.NoteError),
			Warnings:         res.Warnings,
			Timestamp:        res.Log.Timestamp,
		})
	}
}

type startCallRequest struct {
	CandidateID    string `json:"candidate_id"`
	CandidateName  string `json:"candidate_name"`
	CandidatePhone string `json:"candidate_phone"`
	RecruiterID    string `json:"recruiter_id"`
	RecruiterName  string `json:"recruiter_name"`
}

type startCallResponse struct {
	Message          string    `json:"message"`
	Sent             bool      `json:"sent"`
	InteractionLogID string    `json:"interaction_log_id"`
	GoToCallID       string    `json:"goto_call_id,omitempty"`
	CallMethod       string    `json:"call_method"`
	TelURI           string    `json:"tel_uri,omitempty"`
	NoteCreated      bool      `json:"jobdiva_note_created"`
	NoteError        string    `json:"jobdiva_note_error,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// StartCall initiates a recruiter call from the browser extension.
func (s *Server) StartCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startCallRequest
		if err := decodeJSON(r, &req); err != nil {
			s.RespondSendError(w, r, err)
			return
		}

		res, err := s.reconciler.RecordOutboundCall(r.Context(), services.OutboundCall{
			CandidateID:    req.CandidateID,
			CandidateName:  req.CandidateName,
			CandidatePhone: req.CandidatePhone,
			RecruiterID:    req.RecruiterID,
			RecruiterName:  req.RecruiterName,
		})
		if err != nil {
			s.RespondSendError(w, r, err)
			return
		}

		s.Respond(w, r, http.StatusOK, startCallResponse{
			Message:          "Call initiated successfully",
			Sent:             true,
			InteractionLogID: res.Log.ID,
			GoToCallID:       res.CallID,
			CallMethod:       res.CallMethod,
			TelURI:           res.TelURI,
			NoteCreated:      res.Log.NoteCreated,
			NoteError:        models.Deref(res.Log.NoteError),
			Warnings:         res.Warnings,
			Timestamp:        res.Log.Timestamp,
		})
	}
}

// PhoneInfo normalizes ?number= for the extension's display.
func (s *Server) PhoneInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := r.URL.Query().Get("number")
		if number == "" {
			s.Respond(w, r, http.StatusBadRequest, "number is required")
			return
		}
		s.Respond(w, r, http.StatusOK, phone.Info(number))
	}
}

// Root describes the service.
func (s *Server) Root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Respond(w, r, http.StatusOK, map[string]interface{}{
			"message": "JobDiva-GoTo Bridge API",
			"version": "1.0.0",
			"status":  "operational",
			"endpoints": map[string]interface{}{
				"sms":  "/api/sms/send",
				"call": "/api/call/start",
				"webhooks": map[string]string{
					"messages": "/api/webhooks/goto/messages",
					"calls":    "/api/webhooks/goto/call-events",
				},
				"admin": map[string]string{
					"mappings": "/api/admin/mappings",
					"logs":     "/api/admin/logs",
				},
			},
		})
	}
}

// Health reports liveness.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
