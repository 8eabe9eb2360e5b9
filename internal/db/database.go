package db

import (
	"fmt"
	stlog "log" // GORM's logger.New expects a standard log.Logger
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log" // Use zerolog's global logger
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"goto-jobdiva-bridge/internal/models"
)

// InitDB opens a database connection for the given driver ("sqlite" or "postgres").
func InitDB(driver, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	newLogger := gormlogger.New(
		stlog.New(log.Logger, "", stlog.LstdFlags), // GORM writes through zerolog
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond, // gorm's own default threshold
			LogLevel:                  gormLogLevel(zerolog.GlobalLevel()),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("driver", dialector.Name()).Msg("Database connection established successfully.")
	return database, nil
}

// MigrateDB runs GORM's AutoMigrate for the given models.
func MigrateDB(database *gorm.DB, modelsToMigrate ...interface{}) error {
	if database == nil {
		return fmt.Errorf("database not initialized, call InitDB first")
	}
	if len(modelsToMigrate) == 0 {
		return fmt.Errorf("no models provided for migration")
	}

	if err := database.AutoMigrate(modelsToMigrate...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	log.Info().Int("models_migrated", len(modelsToMigrate)).Msg("Database migration completed successfully for provided models.")
	return nil
}

// AllModels lists every table the bridge owns.
func AllModels() []interface{} {
	return []interface{}{&models.RecruiterMapping{}, &models.InteractionLog{}}
}

func gormLogLevel(level zerolog.Level) gormlogger.LogLevel {
	switch {
	case level == zerolog.Disabled:
		return gormlogger.Silent
	case level >= zerolog.ErrorLevel:
		return gormlogger.Error
	case level == zerolog.WarnLevel:
		return gormlogger.Warn
	case level <= zerolog.DebugLevel:
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
