package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
)

// onlineTTL bounds how long a crashed instance can keep a user marked online
const onlineTTL = 60 * time.Second

// UserMap manages user connections. Presence is shared through one Redis
// sorted set per user: members are instance ids, scores are the unix second
// at which that instance's claim expires.
type UserMap struct {
	mu         sync.RWMutex
	users      map[string]*UserConns // userId -> UserConns
	rdb        *redis.Client
	instanceId string
}

// UserConns holds all connections for a user
type UserConns struct {
	Clients []*Client
	Time    time.Time
}

// NewUserMap creates a new UserMap
func NewUserMap(rdb *redis.Client) *UserMap {
	return &UserMap{
		users:      make(map[string]*UserConns),
		rdb:        rdb,
		instanceId: uuid.New().String(),
	}
}

// Register registers a client
func (m *UserMap) Register(ctx context.Context, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, exists := m.users[client.UserId]
	if !exists {
		conns = &UserConns{
			Clients: make([]*Client, 0, 4),
		}
		m.users[client.UserId] = conns
	}

	conns.Clients = append(conns.Clients, client)
	conns.Time = time.Now()

	m.setOnline(ctx, client.UserId)
}

// Unregister unregisters a client and reports whether the user has no connection left
func (m *UserMap) Unregister(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, exists := m.users[client.UserId]
	if !exists {
		return false
	}

	remaining := make([]*Client, 0, len(conns.Clients))
	for _, c := range conns.Clients {
		if c.ConnId != client.ConnId {
			remaining = append(remaining, c)
		}
	}
	conns.Clients = remaining

	if len(conns.Clients) == 0 {
		delete(m.users, client.UserId)
		m.setOffline(ctx, client.UserId)
		return true
	}

	return false
}

// GetAll gets all clients for a user
func (m *UserMap) GetAll(userId string) ([]*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns, exists := m.users[userId]
	if !exists {
		return nil, false
	}

	// Return a copy to avoid race conditions
	clients := make([]*Client, len(conns.Clients))
	copy(clients, conns.Clients)
	return clients, true
}

// HasConnection checks if user has any connection
func (m *UserMap) HasConnection(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns, exists := m.users[userId]
	return exists && len(conns.Clients) > 0
}

// IsOnline checks if user is online (checks Redis for distributed support)
func (m *UserMap) IsOnline(ctx context.Context, userId string) bool {
	if m.HasConnection(userId) {
		return true
	}

	if m.rdb == nil {
		return false
	}

	now := strconv.FormatInt(time.Now().Unix(), 10)
	n, err := m.rdb.ZCount(ctx, onlineKey(userId), "("+now, "+inf").Result()
	if err != nil {
		log.CtxWarn(ctx, "check online status failed: user_id=%s, error=%v", userId, err)
		return false
	}
	return n > 0
}

// Online reports the presence of every user in userIds
func (m *UserMap) Online(ctx context.Context, userIds []string) map[string]bool {
	online := make(map[string]bool, len(userIds))
	for _, id := range userIds {
		online[id] = m.IsOnline(ctx, id)
	}
	return online
}

func onlineKey(userId string) string {
	return fmt.Sprintf(constant.RedisKeyOnline(), userId)
}

// setOnline claims userId for this instance and drops expired claims of others
func (m *UserMap) setOnline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	now := time.Now()
	key := onlineKey(userId)
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Add(onlineTTL).Unix()), Member: m.instanceId})
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Unix(), 10))
		pipe.Expire(ctx, key, onlineTTL)
		return nil
	})
	if err != nil {
		log.CtxWarn(ctx, "set online status failed: user_id=%s, error=%v", userId, err)
	}
}

// setOffline withdraws this instance's claim, other instances keep theirs
func (m *UserMap) setOffline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	if err := m.rdb.ZRem(ctx, onlineKey(userId), m.instanceId).Err(); err != nil {
		log.CtxWarn(ctx, "set offline status failed: user_id=%s, error=%v", userId, err)
	}
}

// RefreshOnlineStatus renews this instance's claim while the user is connected.
// The claim is written again, so a key removed in the meantime comes back.
func (m *UserMap) RefreshOnlineStatus(ctx context.Context, userId string) {
	if m.HasConnection(userId) {
		m.setOnline(ctx, userId)
	}
}

// GetAllOnlineUserIds returns all online user Ids (local only)
func (m *UserMap) GetAllOnlineUserIds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userIds := make([]string, 0, len(m.users))
	for userId := range m.users {
		userIds = append(userIds, userId)
	}
	return userIds
}

// GetAllClients returns every local client
func (m *UserMap) GetAllClients() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var clients []*Client
	for _, conns := range m.users {
		clients = append(clients, conns.Clients...)
	}
	return clients
}
