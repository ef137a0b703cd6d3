package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/hearth/pkg/jwt"
	"github.com/mbeoliero/hearth/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
	// UserIdKey is the context key for user Id
	UserIdKey = "user_id"
	// RoleKey is the context key for the profile role
	RoleKey = "role"
	// TokenKey is the context key for the raw bearer token
	TokenKey = "token"
)

// TokenValidator validates a bearer token and returns its claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// JWTAuth is the JWT authentication middleware
func JWTAuth(validator TokenValidator) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		authHeader := string(c.GetHeader(AuthorizationHeader))
		if authHeader == "" {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenMissing)
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		claims, err := validator.ValidateToken(ctx, tokenString)
		if err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		// Store user info in context
		c.Set(UserIdKey, claims.UserId)
		c.Set(RoleKey, claims.Role)
		c.Set(TokenKey, tokenString)

		c.Next(ctx)
	}
}

// GetUserId gets user Id from context
func GetUserId(c *app.RequestContext) string {
	if v, ok := c.Get(UserIdKey); ok {
		return v.(string)
	}
	return ""
}

// GetRole gets the profile role from context
func GetRole(c *app.RequestContext) string {
	if v, ok := c.Get(RoleKey); ok {
		return v.(string)
	}
	return ""
}

// GetToken gets the raw bearer token from context
func GetToken(c *app.RequestContext) string {
	if v, ok := c.Get(TokenKey); ok {
		return v.(string)
	}
	return ""
}
