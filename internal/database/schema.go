package database

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// ApplySchema brings the store up to date. Postgres is managed by the
// versioned SQL migrations; SQLite, used for local runs and tests, is built
// with AutoMigrate from PersistentModels.
func ApplySchema(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	switch db.Dialector.Name() {
	case "postgres":
		if err := RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	default:
		logger.Info("Running GORM AutoMigrate", slog.String("dialect", db.Dialector.Name()))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}
