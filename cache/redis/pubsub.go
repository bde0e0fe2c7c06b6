package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// RedisMessage is a received pub/sub message.
type RedisMessage struct {
	Channel string
	Payload string
}

// RedisPubSub implements publish/subscribe backed by Redis channels.
type RedisPubSub struct {
	client *goredis.Client
}

// NewPubSub creates a Redis-backed pub/sub client.
func NewPubSub(cfg Config) (*RedisPubSub, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPubSub{client: client}, nil
}

// Publish sends a message to the given channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel, message string) error {
	return r.client.Publish(ctx, channel, message).Err()
}

// Subscribe returns a channel of messages for the given channels, and a
// cancel function that closes the subscription.
func (r *RedisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *RedisMessage, func(), error) {
	sub := r.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan *RedisMessage, 256)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			out <- &RedisMessage{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
