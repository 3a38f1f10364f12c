package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisChannel is the channel notifications are published on
const DefaultRedisChannel = "sitemgmt:admin-events"

// RedisPublisher publishes messages to a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a RedisPublisher
func NewRedisPublisher(client *redis.Client, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Name implements Publisher
func (p *RedisPublisher) Name() string {
	return "redis"
}

// Publish implements Publisher. Delivery to zero subscribers is not an error.
func (p *RedisPublisher) Publish(ctx context.Context, message string) error {
	if err := p.client.Publish(ctx, p.channel, message).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", p.channel, err)
	}
	return nil
}
