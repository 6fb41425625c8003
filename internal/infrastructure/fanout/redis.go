// Package fanout shares ingested events between relay instances over a
// Redis pub/sub channel, so a client connected to any instance sees
// webhooks delivered to any other. Delivery is best effort.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/logger"
)

// envelope is the channel message. Origin lets an instance skip its own
// events, which it has already delivered locally.
type envelope struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// DeliverFunc hands a remote event to local clients.
type DeliverFunc func(ctx context.Context, ev event.CanonicalEvent) error

type RedisBridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     logger.Logger
}

func NewRedisBridge(client *redis.Client, channel string, log logger.Logger) *RedisBridge {
	id := uuid.NewString()
	return &RedisBridge{
		client:     client,
		channel:    channel,
		instanceID: id,
		logger:     log.WithFields(logger.Fields{"component": "fanout", "instance": id}),
	}
}

// Publish sends ev to every other instance.
func (b *RedisBridge) Publish(ctx context.Context, ev event.CanonicalEvent) error {
	payload, err := b.encode(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Key(), err)
	}
	return nil
}

// Run subscribes to the channel and delivers events published by other
// instances until ctx is done.
func (b *RedisBridge) Run(ctx context.Context, deliver DeliverFunc) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	b.logger.Infof("Subscribed to %s", b.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.handleMessage(ctx, []byte(msg.Payload), deliver)
		}
	}
}

func (b *RedisBridge) encode(ev event.CanonicalEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ev.Key(), err)
	}
	return json.Marshal(envelope{Origin: b.instanceID, Event: data})
}

func (b *RedisBridge) handleMessage(ctx context.Context, payload []byte, deliver DeliverFunc) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warnf("Dropping undecodable fan-out message: %v", err)
		return
	}
	if env.Origin == b.instanceID {
		return
	}

	ev, _, err := event.ParseMessage(env.Event)
	if err != nil {
		b.logger.Warnf("Dropping fan-out message from %s: %v", env.Origin, err)
		return
	}

	if err := deliver(ctx, ev); err != nil {
		b.logger.Warnf("Failed to deliver %s from %s: %v", ev.Key(), env.Origin, err)
	}
}
