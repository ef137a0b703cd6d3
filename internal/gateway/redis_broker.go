package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
)

// RedisBroker fans events out over a Redis pub/sub channel
type RedisBroker struct {
	rdb     *redis.Client
	channel string

	mu      sync.Mutex
	pubsubs []*redis.PubSub
}

// NewRedisBroker creates a new RedisBroker on channel
func NewRedisBroker(rdb *redis.Client, channel string) *RedisBroker {
	return &RedisBroker{rdb: rdb, channel: channel}
}

// Publish publishes ev on the channel
func (b *RedisBroker) Publish(ctx context.Context, ev *entity.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// Subscribe starts a receive loop that decodes each payload and calls fn
func (b *RedisBroker) Subscribe(ctx context.Context, fn ChangeHandler) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	// Wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	b.mu.Lock()
	b.pubsubs = append(b.pubsubs, pubsub)
	b.mu.Unlock()

	go func() {
		for msg := range pubsub.Channel() {
			var ev entity.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("decode change event failed: channel=%s, error=%v", msg.Channel, err)
				continue
			}
			fn(&ev)
		}
	}()
	return nil
}

// Close stops every receive loop
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, ps := range b.pubsubs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.pubsubs = nil
	return firstErr
}
