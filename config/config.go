package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log" // Use global logger
)

// Config holds all configuration fields for the application.
type Config struct {
	Port           string
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseURL    string
	CORSOrigins    []string
	AdminToken     string
	WebhookSecret  string
	VendorTimeout  time.Duration
	MockVendors    bool

	GoToTokenURL           string
	GoToAPIBase            string
	GoToClientID           string
	GoToClientSecret       string
	GoToRefreshToken       string
	GoToDefaultPhoneNumber string // owner number used when a recruiter has no active mapping
	GoToDefaultUserID      string
	GoToCallControl        string // "api" or "tel"

	JobDivaBaseURL    string
	JobDivaAPIKey     string
	JobDivaUsername   string
	JobDivaPassword   string
	JobDivaClientID   string
	CandidateCacheTTL time.Duration

	RabbitMQURL   string
	RabbitMQQueue string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present; environment variables take precedence.
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Info().Err(err).Msg("No .env file found or error loading it, relying on environment variables")
	} else {
		log.Info().Msg("Loaded configuration from .env file (if present)")
	}

	log.Info().Msg("Loading configuration from environment variables...")

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		DatabaseDriver: getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getenv("DATABASE_URL", "bridge.db"),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "*")),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
		VendorTimeout:  getDuration("VENDOR_TIMEOUT", 10*time.Second),
		MockVendors:    getBool("MOCK_VENDORS", false),

		GoToTokenURL:           getenv("GOTO_TOKEN_URL", "https://authentication.logmeininc.com/oauth/token"),
		GoToAPIBase:            getenv("GOTO_API_BASE", "https://api.goto.com"),
		GoToClientID:           os.Getenv("GOTO_CLIENT_ID"),
		GoToClientSecret:       os.Getenv("GOTO_CLIENT_SECRET"),
		GoToRefreshToken:       os.Getenv("GOTO_REFRESH_TOKEN"),
		GoToDefaultPhoneNumber: getenv("GOTO_DEFAULT_PHONE_NUMBER", "+17323531312"),
		GoToDefaultUserID:      os.Getenv("GOTO_DEFAULT_USER_ID"),
		GoToCallControl:        getenv("GOTO_CALL_CONTROL", "api"),

		JobDivaBaseURL:    getenv("JOBDIVA_BASE_URL", "https://api.jobdiva.com"),
		JobDivaAPIKey:     os.Getenv("JOBDIVA_API_KEY"),
		JobDivaUsername:   os.Getenv("JOBDIVA_USERNAME"),
		JobDivaPassword:   os.Getenv("JOBDIVA_PASSWORD"),
		JobDivaClientID:   os.Getenv("JOBDIVA_CLIENT_ID"),
		CandidateCacheTTL: getDuration("CANDIDATE_CACHE_TTL", 5*time.Minute),

		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		RabbitMQQueue: getenv("RABBITMQ_QUEUE", "interaction_logs"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    getenv("S3_REGION", "us-east-1"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3PathStyle: getBool("S3_PATH_STYLE", false),
	}

	if cfg.GoToClientID == "" || cfg.GoToClientSecret == "" {
		log.Warn().Msg("GoTo OAuth client ID/secret not fully configured in env vars")
	}
	if cfg.GoToRefreshToken == "" {
		log.Warn().Msg("GOTO_REFRESH_TOKEN is not set; obtain one via the authorization code flow")
	}
	if cfg.JobDivaAPIKey == "" && (cfg.JobDivaUsername == "" || cfg.JobDivaPassword == "") {
		log.Warn().Msg("JobDiva credentials not configured; note creation and candidate lookup will fail")
	}
	if cfg.GoToCallControl != "api" && cfg.GoToCallControl != "tel" {
		log.Warn().Str("value", cfg.GoToCallControl).Msg("Unknown GOTO_CALL_CONTROL, using api")
		cfg.GoToCallControl = "api"
	}

	log.Info().Msg("Configuration loading attempt complete.")
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	log.Debug().Str("key", key).Str("default", def).Msg("Env var not set, using default")
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid boolean, using default")
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
