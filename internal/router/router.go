package router

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/hearth/internal/config"
	"github.com/mbeoliero/hearth/internal/gateway"
	"github.com/mbeoliero/hearth/internal/handler"
	"github.com/mbeoliero/hearth/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth         *handler.AuthHandler
	Profile      *handler.ProfileHandler
	Message      *handler.MessageHandler
	Conversation *handler.ConversationHandler
}

// SetupRouter sets up all routes. wsServer may be nil, in which case /ws is not served.
func SetupRouter(h *server.Hertz, cfg *config.Config, handlers *Handlers, validator middleware.TokenValidator, wsServer *gateway.WsServer) {
	h.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		body := map[string]any{"status": "ok"}
		if wsServer != nil {
			body["online_users"] = wsServer.GetOnlineUserCount()
			body["online_conns"] = wsServer.GetOnlineConnCount()
		}
		c.JSON(consts.StatusOK, body)
	})

	auth := middleware.JWTAuth(validator)

	// Auth routes
	authGroup := h.Group("/auth")
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
		authGroup.POST("/logout", auth, handlers.Auth.Logout)
	}

	// Profile routes (auth required)
	profileGroup := h.Group("/profile", auth)
	{
		profileGroup.GET("/info", handlers.Profile.GetProfile)
		profileGroup.GET("/info/:user_id", handlers.Profile.GetProfileById)
		profileGroup.GET("/list", handlers.Profile.ListProfiles)
		profileGroup.PUT("/update", handlers.Profile.UpdateProfile)
		profileGroup.GET("/online", handlers.Profile.GetOnline)
	}

	// Conversation routes (auth required)
	convGroup := h.Group("/conversation", auth)
	{
		convGroup.GET("/list", handlers.Conversation.ListConversations)
		convGroup.GET("/find", handlers.Conversation.FindConversation)
		convGroup.POST("/create", handlers.Conversation.CreateConversation)
		convGroup.POST("/touch", handlers.Conversation.TouchConversation)
	}

	// Message routes (auth required)
	msgGroup := h.Group("/msg", auth)
	{
		msgGroup.GET("/list", handlers.Message.ListMessages)
		msgGroup.GET("/latest", handlers.Message.GetLatest)
		msgGroup.GET("/unread_count", handlers.Message.GetUnreadCount)
		msgGroup.POST("/send", handlers.Message.SendMessage)
		msgGroup.POST("/mark_read", handlers.Message.MarkRead)
	}

	if wsServer == nil {
		return
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(ctx *app.RequestContext) bool {
			return checkOrigin(ctx, allowedOrigins)
		},
	}

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}

// checkOrigin validates the Origin header against allowed origins
func checkOrigin(ctx *app.RequestContext, allowedOrigins []string) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))

	// No origin header: same-origin request or non-browser client
	if origin == "" {
		return true
	}

	if len(allowedOrigins) == 0 {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}
