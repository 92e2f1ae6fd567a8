package database

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"voiceclone-backend/internal/domain/billing"
	"voiceclone-backend/internal/domain/notifications"
	"voiceclone-backend/internal/domain/plans"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/domain/users"
)

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{
		&users.User{},
		&plans.Plan{},
		&subscriptions.Subscription{},
		&notifications.Notification{},
		&billing.ProcessedEvent{},
	}
}

func Open(dsn string, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database connected and migrated")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
