package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/hearth/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateIfAbsent inserts conv unless its participant pair already has a conversation.
// It returns the stored conversation and whether this call created it.
func (r *ConversationRepo) CreateIfAbsent(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, bool, error) {
	now := entity.NowUnixMilli()
	conv.PairKey = entity.GenPairKey(conv.Participant1Id, conv.Participant2Id)
	if conv.CreatedAt == 0 {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt == 0 {
		conv.UpdatedAt = now
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(conv).Error
	if err != nil {
		return nil, false, err
	}

	stored, err := r.GetByPairKey(ctx, conv.PairKey)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	return stored, stored.Id == conv.Id, nil
}

// GetById gets conversation by Id, nil when absent
func (r *ConversationRepo) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByPairKey gets conversation by normalized pair key, nil when absent
func (r *ConversationRepo) GetByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// FindByParticipants finds the conversation between two users in either order
func (r *ConversationRepo) FindByParticipants(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	return r.GetByPairKey(ctx, entity.GenPairKey(userA, userB))
}

// ListByParticipant gets all conversations a user takes part in, most recent first
func (r *ConversationRepo) ListByParticipant(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := r.db.WithContext(ctx).
		Where("participant_1_id = ? OR participant_2_id = ?", userId, userId).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// Touch moves updated_at forward to at. It never moves it backwards, so
// concurrent touches settle on the latest timestamp.
func (r *ConversationRepo) Touch(ctx context.Context, id string, at int64) (*entity.Conversation, error) {
	err := r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ? AND updated_at < ?", id, at).
		Update("updated_at", at).Error
	if err != nil {
		return nil, err
	}
	return r.GetById(ctx, id)
}
