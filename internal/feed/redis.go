package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "govdash:feed"

// RedisBroker relays events through Redis pub/sub so subscribers connected to
// any instance see changes committed on every instance.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	local   *Broker
	logger  *slog.Logger
}

func NewRedisBroker(client redis.UniversalClient, channel string, local *Broker, logger *slog.Logger) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{client: client, channel: channel, local: local, logger: logger}
}

// Publish sends the event to Redis; local delivery happens when Run reads it back.
func (r *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

// Run relays messages from Redis to the local broker until ctx is done.
func (r *RedisBroker) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.WarnContext(ctx, "discarding malformed feed message", "error", err)
				continue
			}
			_ = r.local.Publish(ctx, event)
		}
	}
}
