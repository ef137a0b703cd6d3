package service

import (
	"context"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/internal/repository"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/hearth/pkg/idgen"
	"github.com/mbeoliero/kit/log"
)

// ConversationService handles conversation-related business logic
type ConversationService struct {
	convRepo    *repository.ConversationRepo
	profileRepo *repository.ProfileRepo
	publisher   ChangePublisher
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo:    repos.Conversation,
		profileRepo: repos.Profile,
	}
}

// SetPublisher sets the change publisher
func (s *ConversationService) SetPublisher(publisher ChangePublisher) {
	s.publisher = publisher
}

// ListConversations gets every conversation the user takes part in, most recent first
func (s *ConversationService) ListConversations(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	convs, err := s.convRepo.ListByParticipant(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return convs, nil
}

// FindConversation finds the conversation between userId and otherUserId, nil when none
func (s *ConversationService) FindConversation(ctx context.Context, userId, otherUserId string) (*entity.Conversation, error) {
	if otherUserId == "" {
		return nil, errcode.ErrInvalidParam
	}
	conv, err := s.convRepo.FindByParticipants(ctx, userId, otherUserId)
	if err != nil {
		log.CtxError(ctx, "find conversation failed: user_id=%s, other_user_id=%s, error=%v", userId, otherUserId, err)
		return nil, errcode.ErrInternalServer
	}
	return conv, nil
}

// StartConversation returns the conversation between userId and otherUserId,
// creating it when the pair has none. Concurrent calls converge on one row.
func (s *ConversationService) StartConversation(ctx context.Context, userId, otherUserId string) (*entity.Conversation, error) {
	if otherUserId == "" {
		return nil, errcode.ErrInvalidParam
	}
	if otherUserId == userId {
		return nil, errcode.ErrSelfConversation
	}

	other, err := s.profileRepo.GetById(ctx, otherUserId)
	if err != nil {
		log.CtxError(ctx, "get profile failed: user_id=%s, error=%v", otherUserId, err)
		return nil, errcode.ErrInternalServer
	}
	if other == nil {
		return nil, errcode.ErrProfileNotFound
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate conversation id failed: %v", err)
		return nil, errcode.ErrConvCreateFailed
	}

	conv, created, err := s.convRepo.CreateIfAbsent(ctx, &entity.Conversation{
		Id:             id,
		Participant1Id: userId,
		Participant2Id: otherUserId,
	})
	if err != nil {
		log.CtxError(ctx, "create conversation failed: user_id=%s, other_user_id=%s, error=%v", userId, otherUserId, err)
		return nil, errcode.ErrConvCreateFailed
	}

	if created {
		publishChange(ctx, s.publisher, constant.TopicConversations, constant.EventInsert, conv, entity.ConversationColumns(conv), conv.Participants())
		log.CtxInfo(ctx, "conversation created: conversation_id=%s, participants=%s,%s", conv.Id, userId, otherUserId)
	}
	return conv, nil
}

// GetForParticipant loads a conversation and checks userId takes part in it
func (s *ConversationService) GetForParticipant(ctx context.Context, userId, conversationId string) (*entity.Conversation, error) {
	if conversationId == "" {
		return nil, errcode.ErrInvalidParam
	}
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	if !conv.HasParticipant(userId) {
		return nil, errcode.ErrNoPermission
	}
	return conv, nil
}

// IsParticipant reports whether userId takes part in conversationId
func (s *ConversationService) IsParticipant(ctx context.Context, userId, conversationId string) (bool, error) {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		return false, err
	}
	return conv != nil && conv.HasParticipant(userId), nil
}

// Touch bumps updated_at to now so recency ordering reflects the latest activity
func (s *ConversationService) Touch(ctx context.Context, userId, conversationId string) (*entity.Conversation, error) {
	if _, err := s.GetForParticipant(ctx, userId, conversationId); err != nil {
		return nil, err
	}

	conv, err := s.convRepo.Touch(ctx, conversationId, entity.NowUnixMilli())
	if err != nil {
		log.CtxError(ctx, "touch conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrConvTouchFailed
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	publishChange(ctx, s.publisher, constant.TopicConversations, constant.EventUpdate, conv, entity.ConversationColumns(conv), conv.Participants())
	return conv, nil
}
