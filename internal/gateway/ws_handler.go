package gateway

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/hearth/pkg/jwt"
	"github.com/mbeoliero/kit/log"
)

// TokenValidator validates the handshake token
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// HandleHertzConnection authenticates the ?token= query and upgrades the request
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	token := c.Query(QueryToken)
	if token == "" {
		c.String(400, "missing required parameters")
		return
	}

	claims, err := s.validator.ValidateToken(ctx, token)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: error=%v", err)
		c.String(401, "unauthorized")
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		wsCfg := s.cfg.WebSocket
		wsConn := NewHertzClientConn(conn, wsCfg.MaxMessageSize, wsCfg.WriteChannelSize, wsCfg.PongWait, wsCfg.PingPeriod, wsCfg.WriteWait)
		client := NewClient(wsConn, claims.UserId, token, uuid.New().String(), s)

		// frames are read only after registration, so a subscribe ack means pushes can reach the client
		if !s.RegisterClient(ctx, client) {
			_ = client.Close()
			return
		}

		// Blocks until the connection closes
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}
