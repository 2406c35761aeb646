package service

import (
	"context"

	"github.com/rs/zerolog"

	"interview-transcriber/constant"
	"interview-transcriber/dto"
)

// Queue publishes a JSON payload under a routing key. Satisfied by
// *rabbitmq.Publisher.
type Queue interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Notifier delivers best-effort events to downstream consumers. Delivery is
// at-most-once: failures are logged here and never reach the operation that
// triggered the notification.
type Notifier interface {
	ChunkUploaded(ctx context.Context, event dto.ChunkUploadedEvent)
	SessionCompleted(ctx context.Context, event dto.SessionCompletedEvent)
}

type eventNotifier struct {
	events Queue
}

func NewEventNotifier(events Queue) Notifier {
	return &eventNotifier{events: events}
}

func (n *eventNotifier) ChunkUploaded(ctx context.Context, event dto.ChunkUploadedEvent) {
	if err := n.events.Publish(ctx, constant.RoutingKeyChunkUploaded, event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("session_id", event.SessionID).
			Int("sequence_index", event.SequenceIndex).
			Msg("failed to publish chunk uploaded event")
	}
}

func (n *eventNotifier) SessionCompleted(ctx context.Context, event dto.SessionCompletedEvent) {
	if err := n.events.Publish(ctx, constant.RoutingKeySessionComplete, event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("session_id", event.SessionID).
			Msg("failed to publish session completed event")
	}
}
