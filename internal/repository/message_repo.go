package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/hearth/internal/entity"
	"gorm.io/gorm"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create creates a new message
func (r *MessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	if msg.CreatedAt == 0 {
		msg.CreatedAt = entity.NowUnixMilli()
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListByConversation gets the whole history of a conversation, oldest first.
// Equal timestamps are ordered by id.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationId string) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetLatest gets the most recent message of a conversation, nil when there is none
func (r *MessageRepo) GetLatest(ctx context.Context, conversationId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("created_at DESC").
		Order("id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// CountUnread counts messages userId has not read yet, excluding their own
func (r *MessageRepo) CountUnread(ctx context.Context, conversationId, userId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND is_read = ? AND sender_id <> ?", conversationId, false, userId).
		Count(&count).Error
	return count, err
}

// MarkRead flags every unread message in the conversation not sent by readerId
// as read and returns the rows that changed.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationId, readerId string) ([]*entity.Message, error) {
	var updated []*entity.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("conversation_id = ? AND is_read = ? AND sender_id <> ?", conversationId, false, readerId).
			Order("created_at ASC").
			Find(&updated).Error; err != nil {
			return err
		}
		if len(updated) == 0 {
			return nil
		}

		ids := make([]string, 0, len(updated))
		for _, m := range updated {
			ids = append(ids, m.Id)
		}
		return tx.Model(&entity.Message{}).
			Where("id IN ?", ids).
			Update("is_read", true).Error
	})
	if err != nil {
		return nil, err
	}

	for _, m := range updated {
		m.Read = true
	}
	return updated, nil
}
