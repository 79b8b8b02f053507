package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ai-integration/internal/config"
	"ai-integration/internal/models"
)

// Connect opens the configured database and migrates the schema.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := Open(dialector, log)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection established", zap.String("driver", cfg.Driver))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database schema migration completed")
	return db, nil
}

// Open wraps gorm.Open with the service's logger settings.
func Open(dialector gorm.Dialector, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		// lib/pq owns the connection so its error type surfaces through gorm.
		conn, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		return postgres.New(postgres.Config{Conn: conn}), nil
	case "sqlite":
		return sqlite.Open(cfg.Path), nil
	}
	return nil, &models.ConfigurationError{Setting: "database.driver", Value: cfg.Driver}
}

// Migrate creates or updates every table the service owns.
// It will NOT delete unneeded columns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.EntityType{},
		&models.FieldDefinition{},
		&models.MessageContextTemplate{},
		&models.TextFormatRow{},
		&models.ReferenceTarget{},
		&models.ContextChild{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.ChannelMessage{},
		&models.DataSource{},
		&models.DataSourceParam{},
		&models.Document{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Translate maps storage errors onto the service's error taxonomy.
func Translate(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NotFoundf("%s", resource)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s already exists: %w", resource, models.ErrConflict)
	}
	return fmt.Errorf("%s: %w", resource, err)
}
