package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/pkg/logger"
)

// DefaultChannel is the pub/sub channel market events are published on.
const DefaultChannel = "market.events"

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(addr, password string, db int, channel string, log *logger.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &RedisPublisher{client: client, channel: channel, log: log}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event market.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
