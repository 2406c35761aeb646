package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"interview-transcriber/dto"
	"interview-transcriber/service"
)

type ServiceDependencies struct {
	ChunkStore           service.ChunkStore
	TranscriptionService service.TranscriptionService
	Aggregator           service.Aggregator
	GapDetector          service.GapDetector
	SessionLifecycle     service.SessionLifecycle
	SpeechService        service.SpeechService
}

func TranscriptionJobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.TranscriptionJobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal transcription job message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("chunk_id", job.ChunkID.String()).
		Str("session_id", job.SessionID).
		Int("sequence_index", job.SequenceIndex).
		Msg("received transcription job")

	return deps.TranscriptionService.Process(ctx, job)
}
