package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	"goto-jobdiva-bridge/internal/apperr"
	"goto-jobdiva-bridge/internal/archive"
	"goto-jobdiva-bridge/internal/models"
	"goto-jobdiva-bridge/internal/services"
	"goto-jobdiva-bridge/internal/store"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// adminAuth requires the Authorization header to equal the admin token.
// Bearer-prefixed tokens are accepted too.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
			hlog.FromRequest(r).Warn().Msg("Rejected admin request with invalid token")
			s.Respond(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type mappingRequest struct {
	RecruiterID   string `json:"recruiter_id"`
	RecruiterName string `json:"recruiter_name"`
	GoToUserID    string `json:"goto_user_id"`
	GoToPhone     string `json:"goto_phone_number"`
	GoToExtension string `json:"goto_extension"`
}

type mappingUpdateRequest struct {
	RecruiterName *string `json:"recruiter_name"`
	GoToUserID    *string `json:"goto_user_id"`
	GoToPhone     *string `json:"goto_phone_number"`
	GoToExtension *string `json:"goto_extension"`
	IsActive      *bool   `json:"is_active"`
}

// CreateMapping registers a recruiter's GoTo identity.
func (s *Server) CreateMapping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mappingRequest
		if err := decodeJSON(r, &req); err != nil {
			s.RespondError(w, r, err)
			return
		}
		m, err := s.mappings.Create(r.Context(), services.MappingInput{
			RecruiterID:          req.RecruiterID,
			RecruiterDisplayName: req.RecruiterName,
			TelephonyUserID:      req.GoToUserID,
			TelephonyPhone:       req.GoToPhone,
			Extension:            req.GoToExtension,
		})
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		s.Respond(w, r, http.StatusCreated, m)
	}
}

// ListMappings lists all mappings; ?active_only=true hides deactivated rows.
func (s *Server) ListMappings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := false
		if v := r.URL.Query().Get("active_only"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				s.Respond(w, r, http.StatusBadRequest, "active_only must be a boolean")
				return
			}
			activeOnly = b
		}
		list, err := s.mappings.List(r.Context(), activeOnly)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		if list == nil {
			list = []models.RecruiterMapping{}
		}
		s.Respond(w, r, http.StatusOK, list)
	}
}

func (s *Server) GetMapping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.mappings.Get(r.Context(), mux.Vars(r)["recruiterId"])
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		s.Respond(w, r, http.StatusOK, m)
	}
}

// UpdateMapping applies only the fields present in the body.
func (s *Server) UpdateMapping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mappingUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			s.RespondError(w, r, err)
			return
		}
		m, err := s.mappings.Update(r.Context(), mux.Vars(r)["recruiterId"], store.MappingPatch{
			RecruiterDisplayName: req.RecruiterName,
			TelephonyUserID:      req.GoToUserID,
			TelephonyPhoneE164:   req.GoToPhone,
			Extension:            req.GoToExtension,
			Active:               req.IsActive,
		})
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		s.Respond(w, r, http.StatusOK, m)
	}
}

// DeleteMapping deactivates; the row is kept for audit.
func (s *Server) DeleteMapping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.mappings.Deactivate(r.Context(), mux.Vars(r)["recruiterId"]); err != nil {
			s.RespondError(w, r, err)
			return
		}
		s.Respond(w, r, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Mapping deactivated",
		})
	}
}

func logFilterFromQuery(r *http.Request) (store.LogFilter, error) {
	q := r.URL.Query()
	f := store.LogFilter{Limit: defaultLogLimit, CandidateID: q.Get("candidate_id")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, &apperr.ValidationError{Msg: "limit must be a positive integer"}
		}
		if n > maxLogLimit {
			n = maxLogLimit
		}
		f.Limit = n
	}
	switch kind := models.InteractionKind(strings.ToLower(q.Get("interaction_type"))); kind {
	case "":
	case models.KindSMS, models.KindCall:
		f.Kind = kind
	default:
		return f, &apperr.ValidationError{Msg: "interaction_type must be sms or call"}
	}
	return f, nil
}

// ListLogs returns interaction logs newest first.
func (s *Server) ListLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := logFilterFromQuery(r)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		logs, err := s.logs.List(r.Context(), f)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		if logs == nil {
			logs = []models.InteractionLog{}
		}
		s.Respond(w, r, http.StatusOK, logs)
	}
}

func (s *Server) GetLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := s.logs.FindByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		s.Respond(w, r, http.StatusOK, l)
	}
}

// ArchiveLogs uploads the filtered logs as one JSON object.
func (s *Server) ArchiveLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.archiver == nil {
			s.RespondError(w, r, archive.ErrDisabled)
			return
		}
		f, err := logFilterFromQuery(r)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		logs, err := s.logs.List(r.Context(), f)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		key, err := s.archiver.ArchiveLogs(r.Context(), logs)
		if err != nil {
			s.RespondError(w, r, err)
			return
		}
		hlog.FromRequest(r).Info().Str("key", key).Int("count", len(logs)).Msg("Archived interaction logs")
		s.Respond(w, r, http.StatusOK, map[string]interface{}{"key": key, "count": len(logs)})
	}
}
