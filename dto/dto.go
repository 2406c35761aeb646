package dto

import (
	"time"

	"github.com/google/uuid"

	"interview-transcriber/constant"
	"interview-transcriber/entities"
)

type TranscriptionJobMessage struct {
	ChunkID       uuid.UUID `json:"chunkId"`
	SessionID     string    `json:"sessionId"`
	SequenceIndex int       `json:"sequenceIndex"`
}

type ChunkUploadResponse struct {
	ChunkID       uuid.UUID             `json:"chunk_id"`
	SessionID     string                `json:"session_id"`
	SequenceIndex int                   `json:"sequence_index"`
	UploadStatus  constant.UploadStatus `json:"upload_status"`
	Message       string                `json:"message"`
}

type AggregateResponse struct {
	SessionID       string               `json:"session_id"`
	FullTranscript  string               `json:"full_transcript"`
	TotalChunks     int                  `json:"total_chunks"`
	ConfidenceScore float64              `json:"confidence_score"`
	Segments        entities.SegmentList `json:"segments"`
}

type GapsResponse struct {
	SessionID      string `json:"session_id"`
	MissingIndices []int  `json:"missing_indices"`
}

type SessionResponse struct {
	SessionID            string                 `json:"session_id"`
	Status               constant.SessionStatus `json:"status"`
	TotalChunksExpected  *int                   `json:"total_chunks_expected"`
	TotalDurationSeconds float64                `json:"total_duration_seconds"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
	CompletedAt          *time.Time             `json:"completed_at"`
}

type ChunkUploadedEvent struct {
	SessionID     string    `json:"session_id"`
	SequenceIndex int       `json:"sequence_index"`
	ChunkID       uuid.UUID `json:"chunk_id"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

type SessionCompletedEvent struct {
	SessionID       string               `json:"session_id"`
	FullTranscript  string               `json:"full_transcript"`
	TotalChunks     int                  `json:"total_chunks"`
	ConfidenceScore float64              `json:"confidence_score"`
	Segments        entities.SegmentList `json:"segments"`
	CompletedAt     time.Time            `json:"completed_at"`
}

type SpeechRequest struct {
	Text   string `json:"text" binding:"required"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

type SpeechResponse struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Cached      bool   `json:"cached"`
	ArtifactURL string `json:"artifact_url"`
}
