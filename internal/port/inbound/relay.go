package inbound

import (
	"context"

	"go-issue-relay/internal/domain/event"
)

// RelayUseCase turns accepted webhook deliveries into broadcasts.
type RelayUseCase interface {
	// Ingest normalizes a webhook body and broadcasts every resulting
	// event, returning how many events were produced. Unrecognized kinds
	// produce zero events and an error wrapping event.ErrUnrecognizedKind.
	Ingest(ctx context.Context, body []byte) (int, error)

	// Deliver broadcasts an already normalized event to local clients
	// only. Used for events that arrive from other relay instances.
	Deliver(ctx context.Context, ev event.CanonicalEvent) error
}
