package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConfig configures the RabbitMQ publisher.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// RabbitMQPublisher publishes events to a durable queue.
type RabbitMQPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitMQPublisher dials the broker and declares the queue.
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq URL is empty")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "stellarmcp.submissions"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare rabbitmq queue: %w", err)
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish sends event as a persistent message. Sends are serialised on
// the channel.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.ch == nil {
		return errors.New("rabbitmq publisher is not initialised")
	}
	body, err := event.encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

// Close closes the channel and the connection.
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
