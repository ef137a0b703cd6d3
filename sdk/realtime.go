package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
)

// Realtime protocol identifiers
const (
	wsSubscribe     = 1001
	wsUnsubscribe   = 1002
	wsPushChange    = 2001
	wsKickOnlineMsg = 2002
)

// ErrRealtimeClosed is returned by Subscribe after Close
var ErrRealtimeClosed = errors.New("realtime client closed")

type wsRequest struct {
	ReqIdentifier int32           `json:"req_identifier"`
	MsgIncr       string          `json:"msg_incr"`
	OperationId   string          `json:"operation_id"`
	Data          json.RawMessage `json:"data"`
}

type wsResponse struct {
	ReqIdentifier int32           `json:"req_identifier"`
	MsgIncr       string          `json:"msg_incr"`
	OperationId   string          `json:"operation_id"`
	ErrCode       int             `json:"err_code"`
	ErrMsg        string          `json:"err_msg"`
	Data          json.RawMessage `json:"data,omitempty"`
}

type subscribeData struct {
	ChannelId string   `json:"channel_id"`
	Topic     string   `json:"topic"`
	Events    []string `json:"events"`
	Filter    []Filter `json:"filter,omitempty"`
}

type changePush struct {
	ChannelId string          `json:"channel_id"`
	Topic     string          `json:"topic"`
	Event     string          `json:"event"`
	Record    json.RawMessage `json:"record"`
	CommitAt  int64           `json:"commit_at"`
}

// channel is one logical subscription. It outlives connections: after a
// reconnect it is subscribed again under the same id.
type channel struct {
	id       string
	spec     ChannelSpec
	onEvent  EventHandler
	onStatus StatusHandler
	status   ChannelStatus
}

// Realtime multiplexes logical channels over one websocket connection and
// re-subscribes all of them after every reconnect.
type Realtime struct {
	wsURL      string
	token      func() string
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration

	mu           sync.Mutex
	conn         *websocket.Conn
	channels     map[string]*channel
	dialing      bool
	reconnecting bool
	closed       bool

	writeMu sync.Mutex
	done    chan struct{}
}

// RealtimeOption configures a Realtime client
type RealtimeOption func(*Realtime)

// WithBackoff sets the reconnect backoff bounds
func WithBackoff(initial, limit time.Duration) RealtimeOption {
	return func(r *Realtime) {
		r.minBackoff = initial
		r.maxBackoff = limit
	}
}

// WithDialer sets a custom websocket dialer
func WithDialer(dialer *websocket.Dialer) RealtimeOption {
	return func(r *Realtime) {
		r.dialer = dialer
	}
}

// NewRealtime creates a realtime client for wsURL. token is read on every
// dial so a refreshed token is used after reconnects.
func NewRealtime(wsURL string, token func() string, opts ...RealtimeOption) *Realtime {
	r := &Realtime{
		wsURL:      wsURL,
		token:      token,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 10 * time.Second,
		channels:   make(map[string]*channel),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe opens a channel. onStatus sees connecting right away, then
// subscribed once the server acknowledges. Delivery stops when the returned
// subscription is closed.
func (r *Realtime) Subscribe(ctx context.Context, spec ChannelSpec, onEvent EventHandler, onStatus StatusHandler) (*Subscription, error) {
	if spec.Topic == "" {
		return nil, fmt.Errorf("channel topic is required")
	}
	if onStatus == nil {
		onStatus = func(ChannelStatus, error) {}
	}
	if onEvent == nil {
		onEvent = func(*ChangeEvent) {}
	}

	ch := &channel{
		id:       uuid.New().String(),
		spec:     spec,
		onEvent:  onEvent,
		onStatus: onStatus,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRealtimeClosed
	}
	r.channels[ch.id] = ch
	conn := r.conn
	r.mu.Unlock()

	r.setStatus(ch.id, StatusConnecting, nil)

	if conn == nil {
		if err := r.ensureConnected(ctx); err != nil {
			// the reconnect loop keeps trying and subscribes once it is back
			if errors.Is(err, ErrRealtimeClosed) {
				return nil, err
			}
			r.setStatus(ch.id, StatusDisconnected, err)
			r.startReconnect()
		}
	} else if err := r.sendSubscribe(conn, ch); err != nil {
		log.CtxWarn(ctx, "send subscribe failed: channel_id=%s, error=%v", ch.id, err)
	}

	return NewSubscription(ch.id, func() { r.release(ch.id) }), nil
}

// Close tears down every channel and the connection
func (r *Realtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	r.conn = nil
	channels := r.channels
	r.channels = make(map[string]*channel)
	r.mu.Unlock()

	close(r.done)
	for _, ch := range channels {
		ch.onStatus(StatusDisconnected, nil)
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// release drops a channel locally and tells the server. Unknown ids are ignored.
func (r *Realtime) release(id string) {
	r.mu.Lock()
	ch, ok := r.channels[id]
	delete(r.channels, id)
	conn := r.conn
	r.mu.Unlock()

	if !ok {
		return
	}
	ch.onStatus(StatusDisconnected, nil)

	if conn != nil {
		data, _ := json.Marshal(map[string]string{"channel_id": id})
		if err := r.write(conn, &wsRequest{ReqIdentifier: wsUnsubscribe, MsgIncr: id, Data: data}); err != nil {
			log.Debug("send unsubscribe failed: channel_id=%s, error=%v", id, err)
		}
	}
}

// ensureConnected dials once and subscribes every known channel on the new connection
func (r *Realtime) ensureConnected(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRealtimeClosed
	}
	if r.conn != nil || r.dialing {
		r.mu.Unlock()
		return nil
	}
	r.dialing = true
	r.mu.Unlock()

	conn, err := r.dial(ctx)

	r.mu.Lock()
	r.dialing = false
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if r.closed {
		r.mu.Unlock()
		_ = conn.Close()
		return ErrRealtimeClosed
	}
	r.conn = conn
	channels := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.Unlock()

	go r.readLoop(conn)

	for _, ch := range channels {
		r.setStatus(ch.id, StatusConnecting, nil)
		if err := r.sendSubscribe(conn, ch); err != nil {
			log.Warn("send subscribe failed: channel_id=%s, error=%v", ch.id, err)
		}
	}
	return nil
}

func (r *Realtime) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(r.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	if r.token != nil {
		q := u.Query()
		q.Set("token", r.token())
		u.RawQuery = q.Encode()
	}

	conn, resp, err := r.dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial realtime: status=%d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial realtime: %w", err)
	}
	return conn, nil
}

// startReconnect runs at most one reconnect loop at a time
func (r *Realtime) startReconnect() {
	r.mu.Lock()
	if r.reconnecting || r.closed {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	go r.reconnectLoop()
}

// reconnectLoop retries with exponential backoff until connected or closed
func (r *Realtime) reconnectLoop() {
	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	backoff := r.minBackoff
	for {
		select {
		case <-r.done:
			return
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := r.ensureConnected(ctx)
		cancel()
		if err == nil || errors.Is(err, ErrRealtimeClosed) {
			return
		}

		log.Debug("realtime reconnect failed: backoff=%s, error=%v", backoff, err)
		r.broadcastStatus(StatusDisconnected, err)

		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

// readLoop dispatches frames until the connection drops
func (r *Realtime) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.handleDrop(conn, err)
			return
		}

		var resp wsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Warn("decode realtime frame failed: %v", err)
			continue
		}

		switch resp.ReqIdentifier {
		case wsSubscribe:
			if resp.ErrCode != 0 {
				r.setStatus(resp.MsgIncr, StatusError, &Error{Code: resp.ErrCode, Msg: resp.ErrMsg})
			} else {
				r.setStatus(resp.MsgIncr, StatusSubscribed, nil)
			}
		case wsUnsubscribe:
		case wsPushChange:
			r.dispatch(resp.Data)
		case wsKickOnlineMsg:
			log.Info("realtime connection kicked by server")
			_ = conn.Close()
		default:
			log.Debug("unknown realtime frame: req_identifier=%d", resp.ReqIdentifier)
		}
	}
}

// handleDrop marks every channel disconnected and schedules a reconnect
func (r *Realtime) handleDrop(conn *websocket.Conn, err error) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	closed := r.closed
	r.mu.Unlock()

	_ = conn.Close()
	if closed {
		return
	}

	log.Info("realtime connection dropped: %v", err)
	r.broadcastStatus(StatusDisconnected, nil)
	r.startReconnect()
}

func (r *Realtime) dispatch(data json.RawMessage) {
	var push changePush
	if err := json.Unmarshal(data, &push); err != nil {
		log.Warn("decode change push failed: %v", err)
		return
	}

	r.mu.Lock()
	ch, ok := r.channels[push.ChannelId]
	r.mu.Unlock()
	if !ok {
		return
	}

	ch.onEvent(&ChangeEvent{
		Topic:    push.Topic,
		Event:    push.Event,
		Record:   push.Record,
		CommitAt: push.CommitAt,
	})
}

func (r *Realtime) sendSubscribe(conn *websocket.Conn, ch *channel) error {
	events := ch.spec.Events
	if len(events) == 0 {
		events = []string{EventAny}
	}
	data, err := json.Marshal(subscribeData{
		ChannelId: ch.id,
		Topic:     ch.spec.Topic,
		Events:    events,
		Filter:    ch.spec.Filter,
	})
	if err != nil {
		return err
	}
	return r.write(conn, &wsRequest{ReqIdentifier: wsSubscribe, MsgIncr: ch.id, Data: data})
}

// write serializes writes, gorilla connections allow one writer at a time
func (r *Realtime) write(conn *websocket.Conn, req *wsRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// setStatus records and reports a transition, repeated states are not reported
func (r *Realtime) setStatus(id string, status ChannelStatus, err error) {
	r.mu.Lock()
	ch, ok := r.channels[id]
	if !ok || (ch.status == status && err == nil) {
		r.mu.Unlock()
		return
	}
	ch.status = status
	r.mu.Unlock()

	ch.onStatus(status, err)
}

func (r *Realtime) broadcastStatus(status ChannelStatus, err error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.setStatus(id, status, err)
	}
}
