package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mbeoliero/hearth/internal/config"
	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/internal/repository"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/hearth/pkg/jwt"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

// AuthService handles authentication logic
type AuthService struct {
	profileRepo *repository.ProfileRepo
	cfg         *config.Config
	tokenStore  *jwt.TokenStore
}

// NewAuthService creates a new AuthService. Without Redis tokens are checked by signature only.
func NewAuthService(profileRepo *repository.ProfileRepo, cfg *config.Config, rdb *redis.Client) *AuthService {
	s := &AuthService{
		profileRepo: profileRepo,
		cfg:         cfg,
	}
	if rdb != nil {
		s.tokenStore = jwt.NewTokenStore(rdb, cfg.JWT.ExpireHours)
	}
	return s
}

// RegisterRequest represents profile registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,max=128"`
	Role     string `json:"role" validate:"required,oneof=homeowner designer freelancer"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Location string `json:"location,omitempty" validate:"omitempty,max=255"`
	Bio      string `json:"bio,omitempty"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Token   string              `json:"token"`
	Profile *entity.ProfileInfo `json:"profile"`
}

// Register creates a new profile
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*entity.ProfileInfo, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errcode.ErrInvalidParam.Wrap(err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.profileRepo.ExistsByEmail(ctx, email)
	if err != nil {
		log.CtxError(ctx, "check email exists failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if exists {
		return nil, errcode.ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash password failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	profile := &entity.Profile{
		Id:       uuid.New().String(),
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
		Email:    email,
		Password: string(hashedPassword),
		Phone:    req.Phone,
		Location: req.Location,
		Bio:      req.Bio,
	}

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		log.CtxError(ctx, "create profile failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "profile registered: user_id=%s, role=%s", profile.Id, profile.Role)
	return profile.ToProfileInfo(), nil
}

// Login authenticates a profile and returns a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errcode.ErrInvalidParam.Wrap(err)
	}

	profile, err := s.profileRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		log.CtxError(ctx, "get profile by email failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if profile == nil {
		log.CtxDebug(ctx, "profile not found: email=%s", req.Email)
		return nil, errcode.ErrProfileNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		return nil, errcode.ErrPasswordWrong
	}

	token, err := jwt.GenerateToken(profile.Id, profile.Role, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	if s.tokenStore != nil {
		if err := s.tokenStore.StoreToken(ctx, profile.Id, token); err != nil {
			log.CtxError(ctx, "store token failed: %v", err)
			return nil, errcode.ErrInternalServer
		}
	}

	log.CtxInfo(ctx, "profile logged in: user_id=%s", profile.Id)
	return &LoginResponse{
		Token:   token,
		Profile: profile.ToProfileInfo(),
	}, nil
}

// ValidateToken validates a token and returns claims
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}
	if s.tokenStore == nil {
		return claims, nil
	}

	valid, err := s.tokenStore.IsTokenValid(ctx, claims.UserId, token)
	if err != nil {
		log.CtxWarn(ctx, "check token status failed: %v", err)
		// Fall back to JWT validation only if Redis check fails
		return claims, nil
	}
	if !valid {
		return nil, errcode.ErrTokenInvalid
	}

	return claims, nil
}

// Logout invalidates a user's token
func (s *AuthService) Logout(ctx context.Context, userId, token string) error {
	if s.tokenStore == nil {
		return nil
	}
	if err := s.tokenStore.InvalidateToken(ctx, userId, token); err != nil {
		log.CtxError(ctx, "invalidate token failed: %v", err)
		return errcode.ErrInternalServer
	}
	log.CtxInfo(ctx, "profile logged out: user_id=%s", userId)
	return nil
}
