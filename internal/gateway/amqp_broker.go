package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mbeoliero/hearth/internal/entity"
	"github.com/mbeoliero/kit/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBroker fans events out through a fanout exchange. Every instance
// consumes from its own exclusive queue bound to the exchange.
type AMQPBroker struct {
	conn     *amqp.Connection
	exchange string

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

// NewAMQPBroker dials url and declares the fanout exchange
func NewAMQPBroker(url, exchange string) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPBroker{conn: conn, exchange: exchange, pubCh: ch}, nil
}

// Publish publishes ev to the exchange
func (b *AMQPBroker) Publish(ctx context.Context, ev *entity.ChangeEvent) error {
	msg, err := changePublishing(ev)
	if err != nil {
		return err
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	return b.pubCh.PublishWithContext(ctx, b.exchange, "", false, false, msg)
}

func changePublishing(ev *entity.ChangeEvent) (amqp.Publishing, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode change event: %w", err)
	}
	return amqp.Publishing{ContentType: "application/json", Body: data}, nil
}

// Subscribe binds an exclusive queue to the exchange and consumes it
func (b *AMQPBroker) Subscribe(_ context.Context, fn ChangeHandler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to consume queue: %w", err)
	}

	go consumeChanges(b.exchange, deliveries, fn)
	return nil
}

// consumeChanges decodes deliveries until the channel closes. Undecodable
// bodies are skipped.
func consumeChanges(exchange string, deliveries <-chan amqp.Delivery, fn ChangeHandler) {
	for d := range deliveries {
		var ev entity.ChangeEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			log.Warn("decode change event failed: exchange=%s, error=%v", exchange, err)
			continue
		}
		fn(&ev)
	}
}

// Close closes the connection and every channel on it
func (b *AMQPBroker) Close() error {
	return b.conn.Close()
}
