package jwt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// Token status constants
const (
	TokenStatusNormal  = 1 // Token is valid
	TokenStatusExpired = 3 // Token expired
	TokenStatusLogout  = 4 // Token was logged out
)

// TokenStore manages token storage in Redis
type TokenStore struct {
	rdb          *redis.Client
	accessExpire time.Duration
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(rdb *redis.Client, expireHours int) *TokenStore {
	return &TokenStore{
		rdb:          rdb,
		accessExpire: time.Duration(expireHours) * time.Hour,
	}
}

// tokenKey generates Redis key for user's tokens
// Format: {prefix}token:{userId}
func (s *TokenStore) tokenKey(userId string) string {
	return fmt.Sprintf(constant.RedisKeyToken(), userId)
}

// StoreToken stores a token in Redis with status
func (s *TokenStore) StoreToken(ctx context.Context, userId, token string) error {
	key := s.tokenKey(userId)

	// Field: token, Value: status
	if err := s.rdb.HSet(ctx, key, token, TokenStatusNormal).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	if err := s.rdb.Expire(ctx, key, s.accessExpire).Err(); err != nil {
		return fmt.Errorf("failed to set token expiration: %w", err)
	}

	return nil
}

// ValidateTokenStatus checks if a token exists and is valid in Redis
// Returns: status (0 if not found), error
func (s *TokenStore) ValidateTokenStatus(ctx context.Context, userId, token string) (int, error) {
	key := s.tokenKey(userId)

	statusStr, err := s.rdb.HGet(ctx, key, token).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token status: %w", err)
	}

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return 0, fmt.Errorf("invalid token status value: %w", err)
	}

	return status, nil
}

// IsTokenValid checks if token is valid (exists and has normal status)
func (s *TokenStore) IsTokenValid(ctx context.Context, userId, token string) (bool, error) {
	status, err := s.ValidateTokenStatus(ctx, userId, token)
	if err != nil {
		return false, err
	}
	return status == TokenStatusNormal, nil
}

// InvalidateToken marks a token as invalid (logout)
func (s *TokenStore) InvalidateToken(ctx context.Context, userId, token string) error {
	key := s.tokenKey(userId)

	exists, err := s.rdb.HExists(ctx, key, token).Result()
	if err != nil {
		return fmt.Errorf("failed to check token existence: %w", err)
	}
	if !exists {
		return nil
	}

	if err := s.rdb.HSet(ctx, key, token, TokenStatusLogout).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// CleanExpiredTokens removes tokens that are not in normal status
func (s *TokenStore) CleanExpiredTokens(ctx context.Context, userId string) error {
	key := s.tokenKey(userId)

	tokens, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to get tokens: %w", err)
	}

	var toDelete []string
	for token, statusStr := range tokens {
		status, _ := strconv.Atoi(statusStr)
		if status != TokenStatusNormal {
			toDelete = append(toDelete, token)
		}
	}

	if len(toDelete) > 0 {
		if err := s.rdb.HDel(ctx, key, toDelete...).Err(); err != nil {
			return fmt.Errorf("failed to delete expired tokens: %w", err)
		}
	}

	return nil
}
