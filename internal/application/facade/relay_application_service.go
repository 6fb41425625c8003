package facade

import (
	"context"
	"errors"
	"fmt"

	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/port/inbound"
	"go-issue-relay/internal/port/outbound"
)

type RelayApplicationService struct {
	broadcaster outbound.Broadcaster
	publisher   outbound.EventPublisher
	logger      logger.Logger
}

var _ inbound.RelayUseCase = (*RelayApplicationService)(nil)

// NewRelayApplicationService wires ingestion to the local hub. publisher
// may be nil when the relay runs as a single instance.
func NewRelayApplicationService(
	broadcaster outbound.Broadcaster,
	publisher outbound.EventPublisher,
	logger logger.Logger,
) *RelayApplicationService {
	return &RelayApplicationService{
		broadcaster: broadcaster,
		publisher:   publisher,
		logger:      logger.WithField("component", "relay"),
	}
}

func (s *RelayApplicationService) Ingest(ctx context.Context, body []byte) (int, error) {
	events, err := event.Normalize(body)
	if err != nil {
		return 0, err
	}

	// Other instances get every event, whatever happened locally.
	var errs []error
	for _, ev := range events {
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, err)
		}

		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, ev); err != nil {
				s.logger.Warnf("Failed to publish %s to other instances: %v", ev.Key(), err)
			}
		}
	}

	return len(events), errors.Join(errs...)
}

func (s *RelayApplicationService) Deliver(ctx context.Context, ev event.CanonicalEvent) error {
	message := hub.NewMessageBuilder().
		WithType(hub.MessageType(ev.Kind())).
		WithData(ev).
		Build()

	delivered, err := s.broadcaster.Broadcast(ctx, message)
	if err != nil {
		return fmt.Errorf("broadcasting %s: %w", ev.Key(), err)
	}

	s.logger.Infof("Broadcast %s to %d connections", ev.Key(), delivered)
	return nil
}
