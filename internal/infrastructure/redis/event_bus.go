package redis

import (
	"context"
	"encoding/json"

	"presence-gateway/internal/domain"
	"presence-gateway/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// EventBus implements the backend pub/sub capability on Redis.
type EventBus struct {
	client *redis.Client
	log    logger.Logger
}

func NewEventBus(client *redis.Client, log logger.Logger) *EventBus {
	return &EventBus{
		client: client,
		log:    log,
	}
}

// Subscribe opens one upstream subscription for the channel and
// delivers every decoded event to handler. A single goroutine drains
// the subscription, so handler sees events in bus order.
func (b *EventBus) Subscribe(ctx context.Context, channel string, handler domain.EventHandler) error {
	pubsub := b.client.Subscribe(ctx, channel)

	// Confirm the subscription before reporting success.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					b.log.Warn("Upstream subscription channel closed", "channel", channel)
					return
				}
				event, err := b.decodeEvent(channel, msg.Payload)
				if err != nil {
					b.log.Error("Failed to decode event", "channel", channel, "payload", msg.Payload, "error", err)
					continue
				}
				handler(event)

			case <-ctx.Done():
				b.log.Info("Upstream subscription stopped", "channel", channel)
				return
			}
		}
	}()

	b.log.Info("Subscribed to upstream channel", "channel", channel)
	return nil
}

func (b *EventBus) Publish(ctx context.Context, channel string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, data).Err()
}

func (b *EventBus) decodeEvent(channel, payload string) (*domain.Event, error) {
	fields := make(map[string]interface{})
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, err
	}
	return &domain.Event{Channel: channel, Payload: fields}, nil
}
