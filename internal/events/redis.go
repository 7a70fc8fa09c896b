package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	URL string
	// Stream is the list key holding events and the pub/sub channel name.
	Stream string
	// MaxLen caps the number of events kept in the list.
	MaxLen int64
}

// RedisPublisher pushes events onto a Redis list and publishes them on the
// channel of the same name.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher connects and pings Redis.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis URL is empty")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisPublisher(client, cfg), nil
}

func newRedisPublisher(client *redis.Client, cfg RedisConfig) *RedisPublisher {
	stream := cfg.Stream
	if stream == "" {
		stream = "stellarmcp:submissions"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish stores and broadcasts event.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, p.stream, body)
	pipe.LTrim(ctx, p.stream, 0, p.maxLen-1)
	pipe.Publish(ctx, p.stream, body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close closes the client.
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
