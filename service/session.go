package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"interview-transcriber/constant"
	"interview-transcriber/dto"
	"interview-transcriber/repository"
)

// SessionLifecycle owns the open → receiving → completed state machine,
// with failed as a terminal state for sessions that end with zero usable
// chunks.
type SessionLifecycle interface {
	GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	// MaybeComplete transitions the session to completed once every
	// expected chunk has reached a terminal transcription status. Called
	// by the worker pool after each chunk settles.
	MaybeComplete(ctx context.Context, sessionID string) error
}

type sessionLifecycle struct {
	repo       repository.Repository
	aggregator Aggregator
	notifier   Notifier
	cache      ArtifactCache
}

func NewSessionLifecycle(repo repository.Repository, aggregator Aggregator, notifier Notifier, cache ArtifactCache) SessionLifecycle {
	return &sessionLifecycle{
		repo:       repo,
		aggregator: aggregator,
		notifier:   notifier,
		cache:      cache,
	}
}

func (l *sessionLifecycle) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	session, err := l.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, asNotFound(err)
	}
	return &dto.SessionResponse{
		SessionID:            session.SessionID,
		Status:               session.Status,
		TotalChunksExpected:  session.TotalChunksExpected,
		TotalDurationSeconds: session.TotalDurationSeconds,
		CreatedAt:            session.CreatedAt,
		UpdatedAt:            session.UpdatedAt,
		CompletedAt:          session.CompletedAt,
	}, nil
}

func (l *sessionLifecycle) MaybeComplete(ctx context.Context, sessionID string) error {
	session, err := l.repo.GetSession(ctx, sessionID)
	if err != nil {
		return asNotFound(err)
	}
	if session.Status.Terminal() {
		return nil
	}
	if session.TotalChunksExpected == nil {
		return nil
	}

	chunks, err := l.repo.ListChunks(ctx, sessionID)
	if err != nil {
		return err
	}

	expected := *session.TotalChunksExpected
	byIndex := make(map[int]constant.TranscriptionStatus, len(chunks))
	for _, chunk := range chunks {
		byIndex[chunk.SequenceIndex] = chunk.TranscriptionStatus
	}

	completed := 0
	for i := 0; i < expected; i++ {
		status, ok := byIndex[i]
		if !ok || !status.Terminal() {
			return nil
		}
		if status == constant.TranscriptionStatusCompleted {
			completed++
		}
	}

	if completed == 0 {
		zerolog.Ctx(ctx).Error().
			Str("session_id", sessionID).
			Int("expected", expected).
			Msg("session ended with zero usable chunks, marking failed")
		return l.repo.SetSessionStatus(ctx, sessionID, constant.SessionStatusFailed)
	}

	aggregate, err := l.aggregator.Aggregate(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	won, err := l.repo.CompleteSession(ctx, sessionID, now)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent worker already completed the session; exactly one
		// completion event is emitted.
		return nil
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Int("total_chunks", aggregate.TotalChunks).
		Float64("confidence", aggregate.ConfidenceScore).
		Msg("session completed")

	l.notifier.SessionCompleted(ctx, dto.SessionCompletedEvent{
		SessionID:       sessionID,
		FullTranscript:  aggregate.FullTranscript,
		TotalChunks:     aggregate.TotalChunks,
		ConfidenceScore: aggregate.ConfidenceScore,
		Segments:        aggregate.Segments,
		CompletedAt:     now,
	})

	// Opportunistic cache cleanup after a unit of higher-level work.
	if l.cache != nil {
		if err := l.cache.Cleanup(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("cache cleanup after session completion failed")
		}
	}

	return nil
}
