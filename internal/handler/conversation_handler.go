package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/hearth/internal/middleware"
	"github.com/mbeoliero/hearth/internal/service"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/hearth/pkg/response"
)

// ConversationHandler handles conversation-related requests
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// CreateConversationRequest represents start conversation request
type CreateConversationRequest struct {
	OtherUserId string `json:"other_user_id"`
}

// TouchConversationRequest represents touch conversation request
type TouchConversationRequest struct {
	ConversationId string `json:"conversation_id"`
}

// ListConversations handles get conversation list request
func (h *ConversationHandler) ListConversations(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	convs, err := h.convService.ListConversations(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, convs)
}

// FindConversation handles lookup of the conversation with another profile.
// Data is null when the pair has no conversation.
func (h *ConversationHandler) FindConversation(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conv, err := h.convService.FindConversation(ctx, userId, c.Query("other_user_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, conv)
}

// CreateConversation handles start conversation request. Repeated calls return the same conversation.
func (h *ConversationHandler) CreateConversation(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req CreateConversationRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	conv, err := h.convService.StartConversation(ctx, userId, req.OtherUserId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, conv)
}

// TouchConversation handles bumping a conversation's updated_at
func (h *ConversationHandler) TouchConversation(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req TouchConversationRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	conv, err := h.convService.Touch(ctx, userId, req.ConversationId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, conv)
}
