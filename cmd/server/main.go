package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/hearth/internal/config"
	"github.com/mbeoliero/hearth/internal/gateway"
	"github.com/mbeoliero/hearth/internal/handler"
	"github.com/mbeoliero/hearth/internal/repository"
	"github.com/mbeoliero/hearth/internal/router"
	"github.com/mbeoliero/hearth/internal/service"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/mbeoliero/hearth/pkg/idgen"
	"github.com/mbeoliero/kit/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := os.Getenv("HEARTH_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s, driver=%s, broker=%s", cfg.Server.Mode, cfg.Database.Driver, cfg.Realtime.Broker)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	// Initialize id generator
	gen, err := idgen.NewSonyflakeGenerator(cfg.IdGen.MachineId)
	if err != nil {
		log.CtxError(ctx, "failed to initialize id generator: %v", err)
		panic(err)
	}
	idgen.SetDefaultGenerator(gen)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Initialize services
	authService := service.NewAuthService(repos.Profile, cfg, repos.Redis)
	profileService := service.NewProfileService(repos.Profile)
	msgService := service.NewMessageService(repos)
	convService := service.NewConversationService(repos)

	// Initialize realtime gateway
	broker, err := gateway.NewBroker(cfg, repos.Redis)
	if err != nil {
		log.CtxError(ctx, "failed to initialize realtime broker: %v", err)
		panic(err)
	}
	wsServer := gateway.NewWsServer(cfg, repos.Redis, broker, convService, authService)

	// Services publish committed changes through the gateway
	msgService.SetPublisher(wsServer)
	convService.SetPublisher(wsServer)

	if err := wsServer.Run(ctx); err != nil {
		log.CtxError(ctx, "failed to start websocket server: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "websocket server started")

	// Initialize handlers
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Profile:      handler.NewProfileHandler(profileService, wsServer),
		Message:      handler.NewMessageHandler(msgService),
		Conversation: handler.NewConversationHandler(convService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, cfg, handlers, authService, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	if err := wsServer.Shutdown(); err != nil {
		log.CtxError(ctx, "websocket shutdown error: %v", err)
	}

	// Graceful shutdown
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
