package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel messages go to when none is configured.
const DefaultChannel = "nandy"

// Redis publishes each message as JSON on a single pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis creates a Redis publisher for addr (host:port).
func NewRedis(addr, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// Ping checks the Redis connection is alive.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Publish implements Notifier. Failures are logged and otherwise ignored.
func (r *Redis) Publish(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notify: encode %s %s: %v", msg.Kind, msg.Action, err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		log.Printf("notify: publish %s %s to %s: %v", msg.Kind, msg.Action, r.channel, err)
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
