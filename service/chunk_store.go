package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"interview-transcriber/config"
	"interview-transcriber/constant"
	"interview-transcriber/dto"
	"interview-transcriber/entities"
	"interview-transcriber/pkg/blob"
	"interview-transcriber/repository"
)

type UpsertChunkInput struct {
	SessionID           string
	SequenceIndex       int
	FileName            string
	Blob                io.Reader
	SizeBytes           int64
	OverlapSeconds      *float64
	TotalChunksExpected *int
	QuestionID          *string
	DurationSeconds     *float64
}

type ChunkStore interface {
	UpsertChunk(ctx context.Context, input UpsertChunkInput) (*dto.ChunkUploadResponse, error)
}

type chunkStore struct {
	repo     repository.Repository
	blobs    blob.Store
	jobs     Queue
	notifier Notifier
	upload   config.Upload
}

func NewChunkStore(repo repository.Repository, blobs blob.Store, jobs Queue, notifier Notifier, upload config.Upload) ChunkStore {
	return &chunkStore{
		repo:     repo,
		blobs:    blobs,
		jobs:     jobs,
		notifier: notifier,
		upload:   upload,
	}
}

// UpsertChunk validates and stores one uploaded chunk. Re-uploading the same
// (session_id, sequence_index) overwrites the prior chunk: the new blob is
// written before metadata, and the old blob is removed only afterwards, so a
// reader never observes metadata pointing at a deleted blob.
func (s *chunkStore) UpsertChunk(ctx context.Context, input UpsertChunkInput) (*dto.ChunkUploadResponse, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	session, err := s.repo.UpsertSessionOnUpload(ctx, input.SessionID, input.TotalChunksExpected)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", input.SessionID).Msg("failed to upsert session")
		return nil, err
	}

	prior, err := s.repo.GetChunk(ctx, input.SessionID, input.SequenceIndex)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(input.FileName))
	objectName := chunkObjectName(input.SessionID, input.SequenceIndex, ext)

	if err := s.blobs.Put(ctx, objectName, input.Blob, input.SizeBytes, contentTypeForExt(ext)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object_name", objectName).Msg("failed to store chunk blob")
		return nil, err
	}

	overlap := s.upload.DefaultOverlapSeconds
	if input.OverlapSeconds != nil {
		overlap = *input.OverlapSeconds
	}

	chunk := &entities.Chunk{
		ID:                  uuid.New(),
		SessionID:           input.SessionID,
		SequenceIndex:       input.SequenceIndex,
		ObjectName:          objectName,
		FileSizeBytes:       input.SizeBytes,
		OverlapSeconds:      overlap,
		QuestionID:          input.QuestionID,
		UploadStatus:        constant.UploadStatusUploaded,
		TranscriptionStatus: constant.TranscriptionStatusPending,
		DurationSeconds:     input.DurationSeconds,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := s.repo.UpsertChunk(ctx, chunk); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("session_id", input.SessionID).
			Int("sequence_index", input.SequenceIndex).
			Msg("failed to upsert chunk row")
		return nil, err
	}

	// The conflict path keeps the existing row id, so read back the
	// canonical row before enqueueing.
	stored, err := s.repo.GetChunk(ctx, input.SessionID, input.SequenceIndex)
	if err != nil {
		return nil, err
	}

	if prior != nil && prior.ObjectName != objectName {
		if err := s.blobs.Remove(ctx, prior.ObjectName); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("object_name", prior.ObjectName).Msg("failed to remove replaced chunk blob")
		}
	}

	if err := s.repo.RecomputeSessionDuration(ctx, input.SessionID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", input.SessionID).Msg("failed to recompute session duration")
	}

	job := dto.TranscriptionJobMessage{
		ChunkID:       stored.ID,
		SessionID:     stored.SessionID,
		SequenceIndex: stored.SequenceIndex,
	}
	if err := s.jobs.Publish(ctx, constant.TranscriptionRoutingKey, job); err != nil {
		// The chunk stays pending; the gap/repair path can re-upload it.
		zerolog.Ctx(ctx).Error().Err(err).
			Str("chunk_id", stored.ID.String()).
			Msg("failed to enqueue transcription job")
	}

	s.notifier.ChunkUploaded(ctx, dto.ChunkUploadedEvent{
		SessionID:     stored.SessionID,
		SequenceIndex: stored.SequenceIndex,
		ChunkID:       stored.ID,
		UploadedAt:    time.Now().UTC(),
	})

	zerolog.Ctx(ctx).Info().
		Str("session_id", stored.SessionID).
		Int("sequence_index", stored.SequenceIndex).
		Str("chunk_id", stored.ID.String()).
		Str("session_status", string(session.Status)).
		Msg("chunk stored")

	return &dto.ChunkUploadResponse{
		ChunkID:       stored.ID,
		SessionID:     stored.SessionID,
		SequenceIndex: stored.SequenceIndex,
		UploadStatus:  constant.UploadStatusUploaded,
		Message:       fmt.Sprintf("chunk %d stored", stored.SequenceIndex),
	}, nil
}

func (s *chunkStore) validate(input UpsertChunkInput) error {
	if input.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	if input.SequenceIndex < 0 {
		return fmt.Errorf("%w: sequence_index must be non-negative", ErrValidation)
	}
	if input.SizeBytes <= 0 {
		return fmt.Errorf("%w: empty audio blob", ErrValidation)
	}
	if input.SizeBytes > s.upload.MaxBytes {
		return fmt.Errorf("%w: blob size %d exceeds limit %d", ErrValidation, input.SizeBytes, s.upload.MaxBytes)
	}
	if input.OverlapSeconds != nil && *input.OverlapSeconds < 0 {
		return fmt.Errorf("%w: overlap_seconds must be non-negative", ErrValidation)
	}
	if input.TotalChunksExpected != nil && *input.TotalChunksExpected <= 0 {
		return fmt.Errorf("%w: total_chunks_expected must be positive", ErrValidation)
	}

	ext := strings.ToLower(filepath.Ext(input.FileName))
	for _, allowed := range s.upload.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: file extension %q is not allowed", ErrValidation, ext)
}

func chunkObjectName(sessionID string, sequenceIndex int, ext string) string {
	return fmt.Sprintf("interviews/%s/chunks/chunk_%05d%s", sessionID, sequenceIndex, ext)
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".webm":
		return "audio/webm"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
