package service

import (
	"context"
	"strings"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/internal/repository"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// ProfileService handles profile-related business logic
type ProfileService struct {
	profileRepo *repository.ProfileRepo
}

// NewProfileService creates a new ProfileService
func NewProfileService(profileRepo *repository.ProfileRepo) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
	}
}

// GetProfile gets profile info by Id
func (s *ProfileService) GetProfile(ctx context.Context, userId string) (*entity.ProfileInfo, error) {
	profile, err := s.profileRepo.GetById(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get profile failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	if profile == nil {
		return nil, errcode.ErrProfileNotFound
	}
	return profile.ToProfileInfo(), nil
}

// GetProfiles gets multiple profiles by Ids
func (s *ProfileService) GetProfiles(ctx context.Context, userIds []string) ([]*entity.ProfileInfo, error) {
	profiles, err := s.profileRepo.GetByIds(ctx, userIds)
	if err != nil {
		log.CtxError(ctx, "get profiles failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	infos := make([]*entity.ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		infos = append(infos, p.ToProfileInfo())
	}
	return infos, nil
}

// ListProfiles browses profiles by role and name
func (s *ProfileService) ListProfiles(ctx context.Context, role, query string, limit int) ([]*entity.ProfileInfo, error) {
	if role != "" && !constant.IsValidRole(role) {
		return nil, errcode.ErrInvalidParam
	}

	profiles, err := s.profileRepo.List(ctx, role, strings.TrimSpace(query), limit)
	if err != nil {
		log.CtxError(ctx, "list profiles failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	infos := make([]*entity.ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		infos = append(infos, p.ToProfileInfo())
	}
	return infos, nil
}

// UpdateProfileRequest represents profile update request
type UpdateProfileRequest struct {
	FullName  string `json:"full_name,omitempty" validate:"omitempty,max=128"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Location  string `json:"location,omitempty" validate:"omitempty,max=255"`
	Bio       string `json:"bio,omitempty"`
	AvatarUrl string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// UpdateProfile updates the caller's profile
func (s *ProfileService) UpdateProfile(ctx context.Context, userId string, req *UpdateProfileRequest) (*entity.ProfileInfo, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errcode.ErrInvalidParam.Wrap(err)
	}

	profile, err := s.profileRepo.GetById(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get profile failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if profile == nil {
		return nil, errcode.ErrProfileNotFound
	}

	updates := make(map[string]interface{})
	if req.FullName != "" {
		updates["full_name"] = strings.TrimSpace(req.FullName)
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Location != "" {
		updates["location"] = req.Location
	}
	if req.Bio != "" {
		updates["bio"] = req.Bio
	}
	if req.AvatarUrl != "" {
		updates["avatar_url"] = req.AvatarUrl
	}

	if len(updates) > 0 {
		updates["updated_at"] = entity.NowUnixMilli()
		if err := s.profileRepo.Update(ctx, userId, updates); err != nil {
			log.CtxError(ctx, "update profile failed: %v", err)
			return nil, errcode.ErrInternalServer
		}
	}

	return s.GetProfile(ctx, userId)
}
