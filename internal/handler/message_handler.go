package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/hearth/internal/middleware"
	"github.com/mbeoliero/hearth/internal/service"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/hearth/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// MarkReadRequest represents mark read request
type MarkReadRequest struct {
	ConversationId string `json:"conversation_id"`
}

// SendMessage handles send message request
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.SendMessage(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// ListMessages handles conversation history request
func (h *MessageHandler) ListMessages(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	messages, err := h.msgService.ListMessages(ctx, userId, c.Query("conversation_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, messages)
}

// GetLatest handles latest message request. Data is null for an empty conversation.
func (h *MessageHandler) GetLatest(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	msg, err := h.msgService.GetLatest(ctx, userId, c.Query("conversation_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// GetUnreadCount handles unread count request
func (h *MessageHandler) GetUnreadCount(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	count, err := h.msgService.CountUnread(ctx, userId, c.Query("conversation_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"unread_count": count,
	})
}

// MarkRead handles mark read request
func (h *MessageHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req MarkReadRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	ids, err := h.msgService.MarkRead(ctx, userId, req.ConversationId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"updated":     len(ids),
		"message_ids": ids,
	})
}
