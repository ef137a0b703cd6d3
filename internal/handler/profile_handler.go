package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/hearth/internal/middleware"
	"github.com/mbeoliero/hearth/internal/service"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/hearth/pkg/response"
)

// PresenceChecker reports which users currently hold a realtime connection
type PresenceChecker interface {
	Online(ctx context.Context, userIds []string) map[string]bool
}

// ProfileHandler handles profile-related requests
type ProfileHandler struct {
	profileService *service.ProfileService
	presence       PresenceChecker
}

// NewProfileHandler creates a new ProfileHandler. presence may be nil, in which case everyone is offline.
func NewProfileHandler(profileService *service.ProfileService, presence PresenceChecker) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, presence: presence}
}

// GetProfile handles get current profile request
func (h *ProfileHandler) GetProfile(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	info, err := h.profileService.GetProfile(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, info)
}

// GetProfileById handles get profile by Id request
func (h *ProfileHandler) GetProfileById(ctx context.Context, c *app.RequestContext) {
	targetId := c.Param("user_id")
	if targetId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	info, err := h.profileService.GetProfile(ctx, targetId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, info)
}

// ListProfiles handles profile browse request
func (h *ProfileHandler) ListProfiles(ctx context.Context, c *app.RequestContext) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	infos, err := h.profileService.ListProfiles(ctx, c.Query("role"), c.Query("q"), limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, infos)
}

// UpdateProfile handles update profile request
func (h *ProfileHandler) UpdateProfile(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.UpdateProfileRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	info, err := h.profileService.UpdateProfile(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, info)
}

// GetOnline handles presence lookup for a comma separated user_ids list
func (h *ProfileHandler) GetOnline(ctx context.Context, c *app.RequestContext) {
	var userIds []string
	for _, id := range strings.Split(c.Query("user_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			userIds = append(userIds, id)
		}
	}
	if len(userIds) == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	online := make(map[string]bool, len(userIds))
	if h.presence != nil {
		online = h.presence.Online(ctx, userIds)
	}
	for _, id := range userIds {
		if _, ok := online[id]; !ok {
			online[id] = false
		}
	}

	response.Success(ctx, c, online)
}
