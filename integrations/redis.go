package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// LocalDelivery hands an encoded message to the sessions of this process.
type LocalDelivery interface {
	BroadcastRaw(data []byte) int
}

// RedisFanout publishes board broadcasts on a Redis channel so every server
// process delivers them to its own sessions.
type RedisFanout struct {
	client     *redis.Client
	channel    string
	local      LocalDelivery
	retryDelay time.Duration
}

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

func NewRedisFanout(ctx context.Context, url, channel string, local LocalDelivery) (*RedisFanout, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	zap.L().Info("Connected to Redis", zap.String("channel", channel))
	return &RedisFanout{client: client, channel: channel, local: local, retryDelay: initialRetryDelay}, nil
}

// Broadcast publishes msg. Local sessions receive it through Run like every
// other process.
func (f *RedisFanout) Broadcast(ctx context.Context, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Run delivers channel messages to local sessions until ctx is done. A lost
// or failed subscription is retried with exponential backoff.
func (f *RedisFanout) Run(ctx context.Context) {
	delay := f.retryDelay
	for {
		subscribed, err := f.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			delay = f.retryDelay
		}
		zap.L().Warn("Redis subscription lost, retrying",
			zap.String("channel", f.channel), zap.Duration("backoff", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// listen subscribes once and forwards messages until the subscription ends.
// subscribed reports whether the subscription was confirmed.
func (f *RedisFanout) listen(ctx context.Context) (subscribed bool, err error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	zap.L().Info("Subscribed to Redis channel", zap.String("channel", f.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-ch:
			if !ok {
				return true, errors.New("subscription channel closed")
			}
			n := f.local.BroadcastRaw([]byte(msg.Payload))
			zap.L().Debug("Delivered broadcast from Redis", zap.Int("sessions", n))
		}
	}
}

func (f *RedisFanout) Close() error {
	return f.client.Close()
}
