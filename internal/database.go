package internal

import (
	"fmt"
	"log/slog"

	"docforge/internal/config"
	"docforge/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB connects to MySQL and migrates the schema. It returns nil without
// error when no database is configured.
func InitDB(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	if !cfg.Database.Enabled() {
		log.Info("database disabled, session metadata kept in memory only")
		return nil, nil
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.Server.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := autoMigrate(db, log); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("database connected and migrated", "host", cfg.Database.Host, "name", cfg.Database.DBName)
	return db, nil
}

func autoMigrate(db *gorm.DB, log *slog.Logger) error {
	tables := []any{&models.SessionRecord{}, &models.GenerationJob{}, &models.ActivityLog{}}
	for _, t := range tables {
		if err := db.AutoMigrate(t); err != nil {
			return err
		}
	}

	// activity_logs rows written before request bodies were dropped
	if db.Migrator().HasColumn(&models.ActivityLog{}, "request_body") {
		log.Info("dropping legacy column activity_logs.request_body")
		if err := db.Migrator().DropColumn(&models.ActivityLog{}, "request_body"); err != nil {
			return fmt.Errorf("failed to drop activity_logs.request_body: %w", err)
		}
	}
	return nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
