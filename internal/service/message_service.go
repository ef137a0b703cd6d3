package service

import (
	"context"
	"strings"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/internal/repository"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/hearth/pkg/idgen"
	"github.com/mbeoliero/kit/log"
)

// MessageService handles message-related business logic
type MessageService struct {
	msgRepo   *repository.MessageRepo
	convRepo  *repository.ConversationRepo
	publisher ChangePublisher
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories) *MessageService {
	return &MessageService{
		msgRepo:  repos.Message,
		convRepo: repos.Conversation,
	}
}

// SetPublisher sets the change publisher
func (s *MessageService) SetPublisher(publisher ChangePublisher) {
	s.publisher = publisher
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	Content        string `json:"content"`
}

// SendMessage stores a message from senderId. Content is trimmed and must not be blank.
func (s *MessageService) SendMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errcode.ErrEmptyContent
	}

	conv, err := s.checkAccess(ctx, senderId, req.ConversationId)
	if err != nil {
		return nil, err
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate message id failed: %v", err)
		return nil, errcode.ErrSendFailed
	}

	msg := &entity.Message{
		Id:             id,
		ConversationId: conv.Id,
		SenderId:       senderId,
		Content:        content,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		log.CtxError(ctx, "send message failed: conversation_id=%s, error=%v", conv.Id, err)
		return nil, errcode.ErrSendFailed
	}

	publishChange(ctx, s.publisher, constant.TopicMessages, constant.EventInsert, msg, entity.MessageColumns(msg), conv.Participants())

	log.CtxInfo(ctx, "message sent: sender_id=%s, conversation_id=%s, message_id=%s", senderId, conv.Id, msg.Id)
	return msg, nil
}

// ListMessages gets the whole history of a conversation, oldest first
func (s *MessageService) ListMessages(ctx context.Context, userId, conversationId string) ([]*entity.Message, error) {
	if _, err := s.checkAccess(ctx, userId, conversationId); err != nil {
		return nil, err
	}

	messages, err := s.msgRepo.ListByConversation(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrPullFailed
	}
	return messages, nil
}

// GetLatest gets the most recent message of a conversation, nil when it has none
func (s *MessageService) GetLatest(ctx context.Context, userId, conversationId string) (*entity.Message, error) {
	if _, err := s.checkAccess(ctx, userId, conversationId); err != nil {
		return nil, err
	}

	msg, err := s.msgRepo.GetLatest(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get latest message failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrPullFailed
	}
	return msg, nil
}

// CountUnread counts messages in the conversation userId has not read, excluding their own
func (s *MessageService) CountUnread(ctx context.Context, userId, conversationId string) (int64, error) {
	if _, err := s.checkAccess(ctx, userId, conversationId); err != nil {
		return 0, err
	}

	count, err := s.msgRepo.CountUnread(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "count unread failed: conversation_id=%s, error=%v", conversationId, err)
		return 0, errcode.ErrInternalServer
	}
	return count, nil
}

// MarkRead marks every message from the other participant as read and
// returns the ids of the rows it changed. Each changed row is published as an update.
func (s *MessageService) MarkRead(ctx context.Context, userId, conversationId string) ([]string, error) {
	conv, err := s.checkAccess(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}

	updated, err := s.msgRepo.MarkRead(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "mark read failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return nil, errcode.ErrMarkReadFailed
	}

	ids := make([]string, 0, len(updated))
	for _, msg := range updated {
		ids = append(ids, msg.Id)
		publishChange(ctx, s.publisher, constant.TopicMessages, constant.EventUpdate, msg, entity.MessageColumns(msg), conv.Participants())
	}
	if len(updated) > 0 {
		log.CtxDebug(ctx, "messages marked read: conversation_id=%s, user_id=%s, count=%d", conversationId, userId, len(updated))
	}
	return ids, nil
}

// checkAccess loads the conversation and verifies userId takes part in it
func (s *MessageService) checkAccess(ctx context.Context, userId, conversationId string) (*entity.Conversation, error) {
	if conversationId == "" {
		return nil, errcode.ErrInvalidParam
	}
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "check conversation access failed: %v", err)
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
