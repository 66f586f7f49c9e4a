package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

// GormMessageRepository implements MessageRepository on a SQL database.
// IDs come from the table's auto-increment key.
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	model := chatMessageToModel(msg)
	model.ID = 0

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoom, msg.RoomKey()).Msg("failed to insert chat message")
		return nil, err
	}

	saved := model.ToDomain()
	saved.CreatedAt = msg.CreatedAt
	return &saved, nil
}

func (r *GormMessageRepository) Recent(ctx context.Context, scope, channel string, limit int) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	var models []ChatMessageModel
	err := r.db.WithContext(ctx).
		Where("scope = ? AND channel = ?", scope, channel).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldScope, scope).Str(log.FieldChannel, channel).Msg("failed to query recent messages")
		return nil, err
	}

	messages := make([]domain.ChatMessage, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain()
	}
	return messages, nil
}

// Close is a no-op; the connection pool is owned by the caller.
func (r *GormMessageRepository) Close() error {
	return nil
}
