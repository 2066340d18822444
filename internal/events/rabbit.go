package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher broadcasts user events on a fanout exchange over a single
// process-scoped connection and channel. amqp091 channels are not safe for
// concurrent publish, so all publishes serialize on one mutex.
type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewRabbitPublisher dials the broker and declares the fanout exchange.
// The declaration is idempotent.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": "app:user-service:event-producer"},
	})
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	return &RabbitPublisher{conn: conn, exchange: exchange, ch: ch}, nil
}

// PublishUserEvent serializes e and publishes it with persistent delivery and
// an empty routing key, so every bound queue receives every event type.
// It returns once the synchronous publish call returns; no broker confirm is
// awaited, and a failed publish is not retried here.
func (p *RabbitPublisher) PublishUserEvent(ctx context.Context, e UserEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.EventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", e.EventType, err)
	}
	return nil
}

// Close releases the channel and then the connection, honoring the context
// deadline when one is set.
func (p *RabbitPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn == nil {
		return nil
	}
	conn := p.conn
	p.conn = nil
	if deadline, ok := ctx.Deadline(); ok {
		return conn.CloseDeadline(deadline)
	}
	return conn.Close()
}
