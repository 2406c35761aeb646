package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"interview-transcriber/dto"
	"interview-transcriber/entities"
	"interview-transcriber/pkg/blob"
	"interview-transcriber/pkg/stt"
	"interview-transcriber/repository"
)

type TranscriptionService interface {
	Process(ctx context.Context, message dto.TranscriptionJobMessage) error
}

type transcriptionService struct {
	repo        repository.Repository
	blobs       blob.Store
	provider    stt.Provider
	lifecycle   SessionLifecycle
	maxAttempts int
}

func NewTranscriptionService(repo repository.Repository, blobs blob.Store, provider stt.Provider, lifecycle SessionLifecycle, maxAttempts int) TranscriptionService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &transcriptionService{
		repo:        repo,
		blobs:       blobs,
		provider:    provider,
		lifecycle:   lifecycle,
		maxAttempts: maxAttempts,
	}
}

// Process transcribes one pending chunk. Transient provider failures are
// retried with backoff up to the attempt budget; after exhaustion the chunk
// is marked failed and the session proceeds without its text. A chunk-level
// failure never escalates to a session-level failure on its own.
func (s *transcriptionService) Process(ctx context.Context, message dto.TranscriptionJobMessage) error {
	log := zerolog.Ctx(ctx).With().
		Str("chunk_id", message.ChunkID.String()).
		Str("session_id", message.SessionID).
		Int("sequence_index", message.SequenceIndex).
		Logger()

	chunk, err := s.repo.GetChunkByID(ctx, message.ChunkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The chunk row was replaced by a re-upload; the new job
			// carries the surviving id.
			log.Info().Msg("chunk no longer exists, skipping")
			return nil
		}
		return err
	}

	claimed, err := s.repo.MarkChunkProcessing(ctx, chunk.ID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info().Str("status", string(chunk.TranscriptionStatus)).Msg("chunk is not pending, skipping")
		return nil
	}

	audio, err := s.readBlob(ctx, chunk.ObjectName)
	if err != nil {
		log.Error().Err(err).Str("object_name", chunk.ObjectName).Msg("failed to read chunk blob")
		failErr := s.repo.FailChunkTranscription(ctx, chunk.ID, fmt.Sprintf("read blob: %v", err), 0)
		if failErr != nil {
			return failErr
		}
		return s.lifecycle.MaybeComplete(ctx, chunk.SessionID)
	}

	attempts := 0
	operation := func() (*stt.Result, error) {
		attempts++
		result, err := s.provider.Transcribe(ctx, bytes.NewReader(audio), filepath.Base(chunk.ObjectName))
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempts).Msg("transcription attempt failed")
			if !stt.IsTransient(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return result, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second

	result, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(s.maxAttempts)))
	if err != nil {
		log.Error().Err(err).Int("attempts", attempts).Msg("transcription failed after all attempts")
		if failErr := s.repo.FailChunkTranscription(ctx, chunk.ID, err.Error(), attempts); failErr != nil {
			return failErr
		}
		return s.lifecycle.MaybeComplete(ctx, chunk.SessionID)
	}

	segments := make(entities.SegmentList, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, entities.Segment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       seg.Text,
			Confidence: seg.Confidence,
		})
	}

	confidence := weightedConfidence(segments)
	if err := s.repo.CompleteChunkTranscription(ctx, chunk.ID, result.Text, segments, confidence, result.DurationSeconds, attempts); err != nil {
		return err
	}
	if err := s.repo.RecomputeSessionDuration(ctx, chunk.SessionID); err != nil {
		log.Warn().Err(err).Msg("failed to recompute session duration")
	}

	log.Info().
		Float64("confidence", confidence).
		Float64("duration_seconds", result.DurationSeconds).
		Int("segments", len(segments)).
		Msg("chunk transcribed")

	return s.lifecycle.MaybeComplete(ctx, chunk.SessionID)
}

func (s *transcriptionService) readBlob(ctx context.Context, objectName string) ([]byte, error) {
	reader, err := s.blobs.Get(ctx, objectName)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// weightedConfidence is the duration-weighted average of per-segment
// confidence. Zero-duration segments carry zero weight.
func weightedConfidence(segments entities.SegmentList) float64 {
	var weighted, total float64
	for _, seg := range segments {
		duration := seg.End - seg.Start
		if duration <= 0 {
			continue
		}
		weighted += seg.Confidence * duration
		total += duration
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}
