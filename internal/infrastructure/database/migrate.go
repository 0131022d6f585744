package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"parley-server/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Conversation{},
		&entities.ConversationChat{},
	); err != nil {
		return err
	}
	log.Info().Msg("applied conversation migrations")
	return nil
}
