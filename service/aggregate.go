package service

import (
	"context"
	"fmt"
	"strings"

	"interview-transcriber/constant"
	"interview-transcriber/dto"
	"interview-transcriber/entities"
	"interview-transcriber/repository"
)

const (
	// overlapCharsPerSecond converts the overlap window to a character
	// budget, assuming ~2.5 spoken words per second at ~10 characters per
	// word including spaces.
	overlapCharsPerSecond = 25
	// minOverlapWindowChars keeps the window useful for very short
	// overlaps; the default 2.0s overlap lands exactly here.
	minOverlapWindowChars = 50
	// minOverlapMatchChars avoids collapsing on trivially short matches.
	minOverlapMatchChars = 4
)

type Aggregator interface {
	Aggregate(ctx context.Context, sessionID string) (*dto.AggregateResponse, error)
}

type aggregator struct {
	repo repository.Repository
}

func NewAggregator(repo repository.Repository) Aggregator {
	return &aggregator{repo: repo}
}

// Aggregate merges all per-chunk transcripts for a session into one, in
// sequence order regardless of upload order. Chunks without a completed
// transcription contribute no text but still count toward total_chunks.
// The merge is a pure read: calling it twice on an unchanged chunk set
// returns identical output.
func (a *aggregator) Aggregate(ctx context.Context, sessionID string) (*dto.AggregateResponse, error) {
	chunks, err := a.repo.ListChunks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: session %s has no chunks", ErrNotFound, sessionID)
	}

	var (
		transcript    strings.Builder
		segments      entities.SegmentList
		confidenceSum float64
		completed     int
	)

	for _, chunk := range chunks {
		if chunk.TranscriptionStatus != constant.TranscriptionStatusCompleted || chunk.TranscriptText == nil {
			continue
		}

		if chunk.ConfidenceScore != nil {
			confidenceSum += *chunk.ConfidenceScore
			completed++
		}

		// Segment timing stays chunk-relative; consumers that need
		// session-global offsets re-base downstream.
		segments = append(segments, chunk.Segments...)

		text := strings.TrimSpace(*chunk.TranscriptText)
		if text == "" {
			continue
		}

		if transcript.Len() == 0 {
			transcript.WriteString(text)
			continue
		}

		window := overlapWindowChars(chunk.OverlapSeconds)
		if matched := overlapMatch(transcript.String(), text, window); matched > 0 {
			transcript.WriteString(text[matched:])
		} else {
			transcript.WriteString(" ")
			transcript.WriteString(text)
		}
	}

	confidence := 0.0
	if completed > 0 {
		confidence = confidenceSum / float64(completed)
	}

	return &dto.AggregateResponse{
		SessionID:       sessionID,
		FullTranscript:  transcript.String(),
		TotalChunks:     len(chunks),
		ConfidenceScore: confidence,
		Segments:        segments,
	}, nil
}

func overlapWindowChars(overlapSeconds float64) int {
	window := int(overlapSeconds * overlapCharsPerSecond)
	if window < minOverlapWindowChars {
		window = minOverlapWindowChars
	}
	return window
}

// overlapMatch returns the length of the longest suffix of accumulated that
// is also a prefix of next, bounded by window. This is a cheap heuristic
// for the audio deliberately duplicated across chunk boundaries, not an
// exact alignment.
func overlapMatch(accumulated, next string, window int) int {
	max := window
	if len(accumulated) < max {
		max = len(accumulated)
	}
	if len(next) < max {
		max = len(next)
	}

	for k := max; k >= minOverlapMatchChars; k-- {
		if accumulated[len(accumulated)-k:] == next[:k] {
			return k
		}
	}
	return 0
}
