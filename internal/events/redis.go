package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultRedisKey     = "ledger_events"
	DefaultRedisChannel = "ledger_events"
	defaultMaxLen       = 10000
)

// RedisPublisher appends events to a capped list and announces them on a
// pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	key     string
	channel string
	maxLen  int64
}

func NewRedisPublisher(client *redis.Client, key, channel string) *RedisPublisher {
	if key == "" {
		key = DefaultRedisKey
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, key: key, channel: channel, maxLen: defaultMaxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	if err := p.client.RPush(ctx, p.key, data).Err(); err != nil {
		return fmt.Errorf("queue event %s: %w", event.ID, err)
	}
	if err := p.client.LTrim(ctx, p.key, -p.maxLen, -1).Err(); err != nil {
		return fmt.Errorf("trim event queue: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("announce event %s: %w", event.ID, err)
	}
	return nil
}
