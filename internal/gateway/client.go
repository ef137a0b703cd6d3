package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// Client represents a connected WebSocket client
type Client struct {
	mu        sync.Mutex
	conn      ClientConn
	UserId    string
	Token     string
	ConnId    string
	server    *WsServer
	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc

	// closed once the event loop has added the client to the user map
	registered chan struct{}

	subMu    sync.RWMutex
	channels map[string]*Subscription
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId, token, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		UserId:   userId,
		Token:    token,
		ConnId:   connId,
		server:   server,
		ctx:        ctx,
		cancel:     cancel,
		registered: make(chan struct{}),
		channels:   make(map[string]*Subscription),
	}
}

// readLoop continuously reads messages from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "handle message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}
	}
}

// handleMessage handles a single incoming message
func (c *Client) handleMessage(message []byte) error {
	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return c.replyError(&req, errcode.ErrInvalidProtocol)
	}

	log.CtxDebug(c.ctx, "received message: req_identifier=%d, user_id=%s", req.ReqIdentifier, c.UserId)

	var resp []byte
	var err error

	switch req.ReqIdentifier {
	case WSSubscribe:
		resp, err = c.handleSubscribe(&req)
	case WSUnsubscribe:
		resp, err = c.handleUnsubscribe(&req)
	default:
		return c.replyError(&req, errcode.ErrInvalidProtocol)
	}

	return c.reply(&req, err, resp)
}

// handleSubscribe opens or replaces a channel
func (c *Client) handleSubscribe(req *WSRequest) ([]byte, error) {
	var subReq SubscribeReq
	if err := json.Unmarshal(req.Data, &subReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	sub, err := NewSubscription(&subReq)
	if err != nil {
		return nil, err
	}
	if err := sub.Authorize(c.ctx, c.UserId, c.server.checker); err != nil {
		return nil, err
	}

	c.subMu.Lock()
	_, replacing := c.channels[sub.ChannelId]
	if !replacing && c.server.maxChannels > 0 && len(c.channels) >= c.server.maxChannels {
		c.subMu.Unlock()
		return nil, errcode.ErrTooManyRequests
	}
	c.channels[sub.ChannelId] = sub
	c.subMu.Unlock()

	log.CtxDebug(c.ctx, "channel subscribed: user_id=%s, channel_id=%s, topic=%s", c.UserId, sub.ChannelId, sub.Topic)
	return json.Marshal(SubscribeResp{ChannelId: sub.ChannelId})
}

// handleUnsubscribe closes a channel. Unknown channel ids succeed.
func (c *Client) handleUnsubscribe(req *WSRequest) ([]byte, error) {
	var unsubReq UnsubscribeReq
	if err := json.Unmarshal(req.Data, &unsubReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	c.subMu.Lock()
	delete(c.channels, unsubReq.ChannelId)
	c.subMu.Unlock()

	return json.Marshal(SubscribeResp{ChannelId: unsubReq.ChannelId})
}

// ChannelCount returns the number of open channels
func (c *Client) ChannelCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.channels)
}

// reply sends a response to the client
func (c *Client) reply(req *WSRequest, err error, data []byte) error {
	if err != nil {
		return c.replyError(req, err)
	}
	return c.writeResponse(WSResponse{
		ReqIdentifier: req.ReqIdentifier,
		MsgIncr:       req.MsgIncr,
		OperationId:   req.OperationId,
		Data:          data,
	})
}

// replyError sends an error response
func (c *Client) replyError(req *WSRequest, err error) error {
	resp := WSResponse{
		ReqIdentifier: req.ReqIdentifier,
		MsgIncr:       req.MsgIncr,
		OperationId:   req.OperationId,
		ErrCode:       errcode.ErrInternalServer.Code,
		ErrMsg:        err.Error(),
	}
	var e *errcode.Error
	if errors.As(err, &e) {
		resp.ErrCode = e.Code
		resp.ErrMsg = e.Msg
	}
	return c.writeResponse(resp)
}

// writeResponse writes a response to the connection
func (c *Client) writeResponse(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	return c.conn.WriteMessage(data)
}

// Deliver pushes ev to every channel of this client it matches and returns how many received it
func (c *Client) Deliver(ctx context.Context, ev *entity.ChangeEvent) int {
	if c.closed.Load() {
		return 0
	}

	c.subMu.RLock()
	var matched []string
	for id, sub := range c.channels {
		if sub.Matches(ev) {
			matched = append(matched, id)
		}
	}
	c.subMu.RUnlock()

	delivered := 0
	for _, channelId := range matched {
		data, err := json.Marshal(&ChangePush{
			ChannelId: channelId,
			Topic:     ev.Topic,
			Event:     ev.Event,
			Record:    ev.Record,
			CommitAt:  ev.CommitAt,
		})
		if err != nil {
			log.CtxError(ctx, "encode change push failed: %v", err)
			continue
		}
		if err := c.writeResponse(WSResponse{ReqIdentifier: WSPushChange, Data: data}); err != nil {
			log.CtxDebug(ctx, "push to client failed: user_id=%s, conn_id=%s, error=%v", c.UserId, c.ConnId, err)
			continue
		}
		delivered++
	}
	return delivered
}

// KickOnline sends kick message and closes connection
func (c *Client) KickOnline() error {
	_ = c.writeResponse(WSResponse{ReqIdentifier: WSKickOnlineMsg})
	return c.Close()
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
