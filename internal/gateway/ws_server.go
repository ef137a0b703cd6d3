package gateway

import (
	"context"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/mbeoliero/hearth/internal/config"
	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
)

// WsServer is the WebSocket server
type WsServer struct {
	cfg            *config.Config
	userMap        *UserMap
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChans      []chan *entity.ChangeEvent
	broker         Broker
	checker        ParticipantChecker
	validator      TokenValidator
	onlineUserNum  atomic.Int64
	onlineConnNum  atomic.Int64
	maxConnNum     int64
	maxChannels    int
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, broker Broker, checker ParticipantChecker, validator TokenValidator) *WsServer {
	workerNum := cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	chanSize := cfg.WebSocket.PushChannelSize / workerNum
	if chanSize <= 0 {
		chanSize = 100
	}

	pushChans := make([]chan *entity.ChangeEvent, workerNum)
	for i := range pushChans {
		pushChans[i] = make(chan *entity.ChangeEvent, chanSize)
	}

	return &WsServer{
		cfg:            cfg,
		userMap:        NewUserMap(rdb),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChans:      pushChans,
		broker:         broker,
		checker:        checker,
		validator:      validator,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
		maxChannels:    cfg.WebSocket.MaxChannels,
	}
}

// Run starts the event loop, the push workers and the broker subscription
func (s *WsServer) Run(ctx context.Context) error {
	go s.eventLoop(ctx)
	for _, ch := range s.pushChans {
		go s.pushLoop(ctx, ch)
	}
	go s.refreshLoop(ctx)
	log.Info("started %d push workers", len(s.pushChans))

	return s.broker.Subscribe(ctx, s.enqueue)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop delivers queued change events
func (s *WsServer) pushLoop(ctx context.Context, ch chan *entity.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			s.processPushTask(ctx, ev)
		}
	}
}

// refreshLoop keeps the Redis online keys of local users alive
func (s *WsServer) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(OnlineRefreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userId := range s.userMap.GetAllOnlineUserIds() {
				s.userMap.RefreshOnlineStatus(ctx, userId)
			}
		}
	}
}

// PublishChange hands a committed change to the broker
func (s *WsServer) PublishChange(ctx context.Context, ev *entity.ChangeEvent) {
	if err := s.broker.Publish(ctx, ev); err != nil {
		log.CtxError(ctx, "publish change failed: topic=%s, event=%s, error=%v", ev.Topic, ev.Event, err)
	}
}

// enqueue routes ev to a push worker. Events of one conversation always share
// a worker so they reach clients in commit order.
func (s *WsServer) enqueue(ev *entity.ChangeEvent) {
	ch := s.pushChans[s.shard(ev)]
	select {
	case ch <- ev:
	default:
		log.Warn("push channel full, change dropped: topic=%s, event=%s", ev.Topic, ev.Event)
	}
}

func (s *WsServer) shard(ev *entity.ChangeEvent) int {
	key := ev.Columns[constant.ColumnConversationId]
	if key == "" {
		key = ev.Columns["id"]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.pushChans)))
}

// processPushTask delivers ev to the local connections of its audience
func (s *WsServer) processPushTask(ctx context.Context, ev *entity.ChangeEvent) {
	for _, userId := range ev.Audience {
		clients, ok := s.userMap.GetAll(userId)
		if !ok {
			continue
		}
		for _, client := range clients {
			client.Deliver(ctx, ev)
		}
	}
}

// registerClient registers a client
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	existingClients, exists := s.userMap.GetAll(client.UserId)
	if !exists {
		s.onlineUserNum.Add(1)
	}

	s.userMap.Register(ctx, client)
	s.onlineConnNum.Add(1)
	if client.registered != nil {
		close(client.registered)
	}

	log.CtxInfo(ctx, "client registered: user_id=%s, conn_id=%s, existing_conns=%d, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, len(existingClients), s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	isUserOffline := s.userMap.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)

	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// RegisterClient queues client for registration and waits until it is in the
// user map or ctx ends. It reports false when the client was never queued.
func (s *WsServer) RegisterClient(ctx context.Context, client *Client) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.registerChan <- client:
	case <-ctx.Done():
		return false
	}
	select {
	case <-client.registered:
	case <-ctx.Done():
	}
	return true
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// Online reports which of userIds hold a realtime connection on any instance
func (s *WsServer) Online(ctx context.Context, userIds []string) map[string]bool {
	return s.userMap.Online(ctx, userIds)
}

// Shutdown kicks every local connection and closes the broker
func (s *WsServer) Shutdown() error {
	for _, client := range s.userMap.GetAllClients() {
		_ = client.KickOnline()
	}
	return s.broker.Close()
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}
