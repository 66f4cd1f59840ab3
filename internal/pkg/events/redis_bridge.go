// internal/pkg/events/redis_bridge.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "ledroit:events"

// RedisBridge publishes events through Redis so every instance's Bus sees them.
type RedisBridge struct {
	client  redis.UniversalClient
	channel string
	bus     *Bus
	logger  *zap.Logger
}

func NewRedisBridge(client redis.UniversalClient, channel string, bus *Bus, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		bus:     bus,
		logger:  logger,
	}
}

// Publish sends e to the shared channel. Local delivery happens when Listen
// receives it back.
func (r *RedisBridge) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and forwards messages to the local bus
// until ctx is done or stop is called.
func (r *RedisBridge) Listen(ctx context.Context) (stop func(), err error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ch := sub.Channel()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					r.logger.Warn("dropping malformed event", zap.Error(err))
					continue
				}
				r.bus.Dispatch(e)
			}
		}
	}()

	return func() {
		cancel()
		_ = sub.Close()
		<-done
	}, nil
}
