package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/config"
	"goto-jobdiva-bridge/internal/adapters/fake"
	"goto-jobdiva-bridge/internal/adapters/gotoconnect"
	"goto-jobdiva-bridge/internal/adapters/jobdiva"
	"goto-jobdiva-bridge/internal/archive"
	"goto-jobdiva-bridge/internal/auth"
	"goto-jobdiva-bridge/internal/db"
	"goto-jobdiva-bridge/internal/events"
	"goto-jobdiva-bridge/internal/handlers"
	"goto-jobdiva-bridge/internal/services"
	"goto-jobdiva-bridge/internal/store"
	"goto-jobdiva-bridge/pkg/httputil"
	"goto-jobdiva-bridge/pkg/logger"
)

func main() {
	logger.InitLogger()

	log.Info().Msg("Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Str("driver", cfg.DatabaseDriver).Msg("Initializing database...")
	database, err := db.InitDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := db.MigrateDB(database, db.AllModels()...); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	mappingStore, err := store.NewMappingStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize mapping store")
	}
	logStore, err := store.NewLogStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize log store")
	}

	telephony, ats := vendors(cfg)

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}()

	archiver, err := archive.NewS3Archiver(archive.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PathStyle: cfg.S3PathStyle,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize S3 archiver")
	}

	reconciler, err := services.NewReconciler(services.ReconcilerDeps{
		Telephony: telephony,
		ATS:       ats,
		Mappings:  mappingStore,
		Logs:      logStore,
		Publisher: publisher,
		Default: services.DefaultIdentity{
			PhoneNumber: cfg.GoToDefaultPhoneNumber,
			UserID:      cfg.GoToDefaultUserID,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize reconciler")
	}
	mappingService, err := services.NewMappingService(mappingStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize mapping service")
	}

	srv := handlers.NewServer(reconciler, mappingService, logStore, archiver, handlers.Options{
		AdminToken:    cfg.AdminToken,
		WebhookSecret: cfg.WebhookSecret,
		CORSOrigins:   cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Msgf("Server starting on port %s...", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

// vendors builds the GoTo and JobDiva clients, or in-memory doubles when MOCK_VENDORS is set.
func vendors(cfg *config.Config) (services.Telephony, services.ATS) {
	if cfg.MockVendors {
		log.Warn().Msg("MOCK_VENDORS enabled; GoTo and JobDiva calls are simulated")
		return &fake.Telephony{}, fake.NewATS(nil)
	}

	gotoTokens := auth.NewTokenCache("goto", &auth.RefreshTokenGrant{
		Service:      "goto",
		TokenURL:     cfg.GoToTokenURL,
		ClientID:     cfg.GoToClientID,
		ClientSecret: cfg.GoToClientSecret,
		RefreshToken: cfg.GoToRefreshToken,
		HTTP:         httputil.NewClient("", cfg.VendorTimeout),
	})
	gotoClient, err := gotoconnect.NewClient(httputil.NewClient(cfg.GoToAPIBase, cfg.VendorTimeout), gotoTokens, cfg.GoToCallControl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize GoTo Connect client")
	}

	jobDivaHTTP := httputil.NewClient(cfg.JobDivaBaseURL, cfg.VendorTimeout)
	var jobDivaTokens jobdiva.TokenSource = jobdiva.APIKey(cfg.JobDivaAPIKey)
	if cfg.JobDivaAPIKey == "" {
		jobDivaTokens = auth.NewTokenCache("jobdiva", &jobdiva.LoginRefresher{
			HTTP:     jobDivaHTTP,
			Username: cfg.JobDivaUsername,
			Password: cfg.JobDivaPassword,
			ClientID: cfg.JobDivaClientID,
		})
	}
	jobDivaClient, err := jobdiva.NewClient(jobDivaHTTP, jobDivaTokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize JobDiva client")
	}

	return gotoClient, jobdiva.NewCachedClient(jobDivaClient, cfg.CandidateCacheTTL)
}

func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.RabbitMQURL == "" {
		log.Info().Msg("RABBITMQ_URL not set; interaction events are not published")
		return events.NopPublisher{}
	}
	p, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
	if err != nil {
		log.Error().Err(err).Msg("Could not connect to RabbitMQ; interaction events are not published")
		return events.NopPublisher{}
	}
	return p
}
