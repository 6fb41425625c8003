package outbound

import (
	"context"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/hub"
)

// Broadcaster delivers a message to every locally connected client.
type Broadcaster interface {
	Broadcast(ctx context.Context, message *hub.Message) (int, error)
}

// EventPublisher hands events to other relay instances.
type EventPublisher interface {
	Publish(ctx context.Context, ev event.CanonicalEvent) error
}
