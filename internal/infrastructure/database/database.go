package database

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
)

// SchemaRegistry collects models for auto-migration; dbschema registers its
// tables here from init().
var SchemaRegistry []interface{}

// RegisterSchemaForAutoMigrate adds models to the migration registry.
func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

// Config holds database connection configuration.
type Config struct {
	DatabaseURL string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	MaxAttempts int
	LogLevel    gormlogger.LogLevel
}

const (
	backoffBase = time.Second
	backoffCap  = 10 * time.Second
)

// Connect establishes the database connection, retrying with exponential
// backoff (1s base, 10s cap) up to Config.MaxAttempts before surfacing the
// error.
func Connect(ctx context.Context, cfg Config) (*gorm.DB, error) {
	log := logger.GetLogger()

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}

	var db *gorm.DB
	var err error
	delay := backoffBase
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(cfg.LogLevel),
		})
		if err == nil {
			if sqlDB, pingErr := db.DB(); pingErr == nil {
				if pingErr = sqlDB.PingContext(ctx); pingErr == nil {
					sqlDB.SetMaxIdleConns(cfg.MaxIdle)
					sqlDB.SetMaxOpenConns(cfg.MaxOpen)
					sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
					log.Info().Msg("connected to database")
					return db, nil
				} else {
					err = pingErr
				}
			} else {
				err = pingErr
			}
		}

		if attempt == attempts {
			break
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("database connection failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}

	log.Error().Err(err).Msg("unable to connect to database")
	return nil, err
}

// Migrate applies auto-migration for all registered schemas.
func Migrate(db *gorm.DB) error {
	for _, model := range SchemaRegistry {
		if err := db.AutoMigrate(model); err != nil {
			log := logger.GetLogger()
			log.Error().Err(err).Msgf("failed to auto migrate schema: %T", model)
			return err
		}
	}
	return nil
}
