package gateway

import (
	"context"
	"sync"

	"github.com/mbeoliero/hearth/internal/config"
	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/hearth/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// ChangeHandler receives change events delivered by a broker
type ChangeHandler func(ev *entity.ChangeEvent)

// Broker fans change events out to every server instance
type Broker interface {
	Publish(ctx context.Context, ev *entity.ChangeEvent) error
	// Subscribe registers fn for every event published from now on. It returns
	// once the subscription is live.
	Subscribe(ctx context.Context, fn ChangeHandler) error
	Close() error
}

// NewBroker builds the broker named by cfg.Realtime.Broker
func NewBroker(cfg *config.Config, rdb *redis.Client) (Broker, error) {
	switch cfg.Realtime.Broker {
	case "", constant.BrokerLocal:
		return NewLocalBroker(), nil
	case constant.BrokerRedis:
		if rdb == nil {
			return nil, ErrUnknownBroker
		}
		return NewRedisBroker(rdb, constant.RedisKeyChanges()), nil
	case constant.BrokerAMQP:
		return NewAMQPBroker(cfg.Realtime.AMQPURL, cfg.Realtime.AMQPExchange)
	default:
		return nil, ErrUnknownBroker
	}
}

// LocalBroker delivers events in-process, for single instance deployments
type LocalBroker struct {
	mu       sync.RWMutex
	handlers []ChangeHandler
}

// NewLocalBroker creates a new LocalBroker
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

// Publish hands ev to every registered handler
func (b *LocalBroker) Publish(_ context.Context, ev *entity.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.handlers {
		fn(ev)
	}
	return nil
}

// Subscribe registers fn
func (b *LocalBroker) Subscribe(_ context.Context, fn ChangeHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
	return nil
}

// Close drops all handlers
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = nil
	return nil
}
