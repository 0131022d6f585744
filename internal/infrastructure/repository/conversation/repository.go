package conversation

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "parley-server/internal/domain/conversation"
	"parley-server/internal/domain/query"
	"parley-server/internal/infrastructure/database/entities"
	"parley-server/internal/utils/platformerrors"
)

// Repository handles conversation persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores the identity row and, when the conversation carries a
// payload, the 1:1 chat row, in one transaction.
func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewConversationEntity(conv)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entity).Error; err != nil {
			return err
		}
		if conv.Payload == nil {
			return nil
		}
		raw, err := domain.EncodePayload(*conv.Payload)
		if err != nil {
			return err
		}
		return tx.Create(&entities.ConversationChat{
			ConversationID: entity.ID,
			Payload:        raw,
		}).Error
	})
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			err,
			"f3a1c6d2-58b4-4f0e-9c27-6d1e8a5b3c90",
		)
	}

	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *Repository) FindOne(ctx context.Context, filter domain.Filter) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.applyFilter(r.db.WithContext(ctx), filter).
		Preload("Chat").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"conversation not found",
				err,
				"a7d92f41-3c6e-4b85-8d10-5e2f9b4c7a63",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find conversation",
			err,
			"c5e83b72-9f14-4d6a-b0c9-8a3d5f2e6b41",
		)
	}
	return entities.EtoD(entity)
}

// FindByFilter lists identity rows newest first. Chat payloads are not
// loaded; listings are summaries.
func (r *Repository) FindByFilter(ctx context.Context, filter domain.Filter, pagination query.Pagination) ([]*domain.Conversation, error) {
	p := pagination.Normalized()

	var rows []entities.Conversation
	err := r.applyFilter(r.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Offset(p.Offset()).
		Limit(p.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations",
			err,
			"e9b47a58-1d2c-4f3e-a6b5-7c8d9e0f1a24",
		)
	}

	out := make([]*domain.Conversation, 0, len(rows))
	for _, row := range rows {
		conv, err := entities.EtoD(row)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context, filter domain.Filter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&entities.Conversation{}), filter).
		Count(&count).Error
	if err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count conversations",
			err,
			"b2c91e67-4a8f-4d5b-9e0c-3f6a7d8b5c12",
		)
	}
	return count, nil
}

// SavePayload upserts the chat row for a conversation.
func (r *Repository) SavePayload(ctx context.Context, conversationID uint, payload *domain.ChatPayload) error {
	raw, err := domain.EncodePayload(*payload)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeValidation,
			"failed to encode chat payload",
			err,
			"",
		)
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&entities.ConversationChat{
			ConversationID: conversationID,
			Payload:        raw,
		}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to save chat payload",
			err,
			"d4f62c83-7b9e-4a1d-8c5f-2e9b0a3d6c75",
		)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, conversationID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conversationID).
			Delete(&entities.ConversationChat{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", conversationID).
			Delete(&entities.Conversation{}).Error
	})
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete conversation",
			err,
			"96a5d3e8-2f7b-4c1a-b8d4-0e6c9f5a2b37",
		)
	}
	return nil
}

func (r *Repository) applyFilter(tx *gorm.DB, filter domain.Filter) *gorm.DB {
	if filter.PublicID != nil {
		tx = tx.Where("public_id = ?", *filter.PublicID)
	}
	if filter.UserID != nil {
		tx = tx.Where("user_id = ?", *filter.UserID)
	}
	return tx
}

var _ domain.Repository = (*Repository)(nil)
