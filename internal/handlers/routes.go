package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Routes builds the router with the logging, recovery and CORS chain applied.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()

	router.Handle("/", s.Root()).Methods(http.MethodGet)
	router.Handle("/api/", s.Root()).Methods(http.MethodGet)
	router.Handle("/health", s.Health()).Methods(http.MethodGet)
	router.Handle("/api/phone/info", s.PhoneInfo()).Methods(http.MethodGet)

	router.Handle("/api/sms/send", s.SendSMS()).Methods(http.MethodPost)
	router.Handle("/api/call/start", s.StartCall()).Methods(http.MethodPost)

	router.Handle("/api/webhooks/goto/messages", s.MessageWebhook()).Methods(http.MethodPost)
	router.Handle("/api/webhooks/goto/call-events", s.CallWebhook()).Methods(http.MethodPost)

	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.Use(s.adminAuth)
	admin.Handle("/mappings", s.CreateMapping()).Methods(http.MethodPost)
	admin.Handle("/mappings", s.ListMappings()).Methods(http.MethodGet)
	admin.Handle("/mappings/{recruiterId}", s.GetMapping()).Methods(http.MethodGet)
	admin.Handle("/mappings/{recruiterId}", s.UpdateMapping()).Methods(http.MethodPut)
	admin.Handle("/mappings/{recruiterId}", s.DeleteMapping()).Methods(http.MethodDelete)
	admin.Handle("/logs", s.ListLogs()).Methods(http.MethodGet)
	admin.Handle("/logs/archive", s.ArchiveLogs()).Methods(http.MethodPost)
	admin.Handle("/logs/{id}", s.GetLog()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Respond(w, r, http.StatusNotFound, "Not found")
	})

	c := alice.New()
	c = c.Append(hlog.NewHandler(log.Logger))
	c = c.Append(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Got API request")
	}))
	c = c.Append(hlog.RemoteAddrHandler("ip"))
	c = c.Append(hlog.UserAgentHandler("user_agent"))
	c = c.Append(hlog.RequestIDHandler("req_id", "Request-Id"))
	c = c.Append(s.recoverer)
	c = c.Append(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SignatureHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	return c.Then(router)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				hlog.FromRequest(r).Error().Interface("panic", rec).Msg("Recovered from panic in handler")
				s.Respond(w, r, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
