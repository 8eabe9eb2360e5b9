// Package handlers exposes the bridge over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/apperr"
	"goto-jobdiva-bridge/internal/archive"
	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/internal/services"
	"goto-jobdiva-bridge/internal/store"
)

// Reconciler is the interaction core behind the extension and webhook routes.
type Reconciler interface {
	RecordOutboundSMS(ctx context.Context, req services.OutboundSMS) (*services.OutboundResult, error)
	RecordOutboundCall(ctx context.Context, req services.OutboundCall) (*services.OutboundResult, error)
	ReconcileMessageEvent(ctx context.Context, ev services.MessageEvent) (*services.EventResult, error)
	ReconcileCallEvent(ctx context.Context, ev services.CallEvent) (*services.EventResult, error)
}

// Mappings is the admin mapping surface.
type Mappings interface {
	Create(ctx context.Context, in services.MappingInput) (*models.RecruiterMapping, error)
	Get(ctx context.Context, recruiterID string) (*models.RecruiterMapping, error)
	List(ctx context.Context, activeOnly bool) ([]models.RecruiterMapping, error)
	Update(ctx context.Context, recruiterID string, patch store.MappingPatch) (*models.RecruiterMapping, error)
	Deactivate(ctx context.Context, recruiterID string) error
}

// LogReader reads interaction logs.
type LogReader interface {
	List(ctx context.Context, f store.LogFilter) ([]models.InteractionLog, error)
	FindByID(ctx context.Context, id string) (*models.InteractionLog, error)
}

// Archiver exports interaction logs.
type Archiver interface {
	ArchiveLogs(ctx context.Context, logs []models.InteractionLog) (string, error)
}

// Options configures a Server.
type Options struct {
	AdminToken    string
	WebhookSecret string
	CORSOrigins   []string
}

// Server holds the handler dependencies.
type Server struct {
	reconciler Reconciler
	mappings   Mappings
	logs       LogReader
	archiver   Archiver
	opts       Options
}

func NewServer(reconciler Reconciler, mappings Mappings, logs LogReader, archiver Archiver, opts Options) *Server {
	if reconciler == nil || mappings == nil || logs == nil {
		log.Fatal().Msg("Reconciler, mappings and logs cannot be nil for Server")
	}
	if opts.WebhookSecret == "" {
		log.Warn().Msg("WEBHOOK_SECRET is not configured. Webhook signatures will not be validated.")
	}
	if opts.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN is not configured. Admin routes are unprotected.")
	}
	return &Server{reconciler: reconciler, mappings: mappings, logs: logs, archiver: archiver, opts: opts}
}

// Respond writes the standard envelope:
// {"code", "success": true, "data"} for 2xx and {"code", "success": false, "error"} otherwise.
func (s *Server) Respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	envelope := map[string]interface{}{"code": status}
	if status >= 200 && status < 300 {
		envelope["success"] = true
		envelope["data"] = data
	} else {
		envelope["success"] = false
		switch v := data.(type) {
		case error:
			envelope["error"] = v.Error()
		default:
			envelope["error"] = v
		}
	}
	s.respondWithJSON(w, status, envelope)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// RespondError maps err onto the status and error_type of the error taxonomy.
func (s *Server) RespondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, nil)
}

// RespondSendError is RespondError for SMS send and call start. The envelope also
// reports whether GoTo accepted the request before the failure.
func (s *Server) RespondSendError(w http.ResponseWriter, r *http.Request, err error) {
	var unrecorded *services.UnrecordedSendError
	sent := errors.As(err, &unrecorded)
	extra := map[string]interface{}{"sent": sent}
	if sent && unrecorded.RemoteID != "" {
		extra["remote_id"] = unrecorded.RemoteID
	}
	s.respondError(w, r, err, extra)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, extra map[string]interface{}) {
	status := http.StatusInternalServerError
	kind := apperr.Kind(err)
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindAuth, apperr.KindRemoteAPI:
		status = http.StatusBadGateway
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	}
	if errors.Is(err, archive.ErrDisabled) {
		status = http.StatusServiceUnavailable
	}

	envelope := map[string]interface{}{
		"code":       status,
		"success":    false,
		"error":      err.Error(),
		"error_type": string(kind),
	}
	var re *apperr.RemoteAPIError
	if errors.As(err, &re) && re.StatusCode != 0 {
		envelope["remote_status"] = re.StatusCode
	}
	for k, v := range extra {
		envelope[k] = v
	}

	logger := hlog.FromRequest(r)
	if status >= 500 {
		logger.Error().Err(err).Str("errorType", string(kind)).Msg("Request failed")
	} else {
		logger.Warn().Err(err).Str("errorType", string(kind)).Msg("Request rejected")
	}
	w.Header().Set("Content-Type", "application/json")
	s.respondWithJSON(w, status, envelope)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return &apperr.ValidationError{Msg: "could not decode payload: " + err.Error()}
	}
	return nil
}
