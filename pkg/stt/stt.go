// Package stt defines the speech-to-text provider boundary.
package stt

import (
	"context"
	"errors"
	"io"
)

type Provider interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Result, error)
}

type Result struct {
	Text            string
	Language        string
	DurationSeconds float64
	Segments        []Segment
}

// Segment timing is relative to the start of the submitted audio.
type Segment struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// ProviderError classifies a failed provider call. Transient errors
// (timeouts, rate limits, 5xx) are retried by the worker pool; the rest,
// such as malformed-audio rejections, are not.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
}

func (e *ProviderError) Error() string {
	return e.Message
}

func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	// Transport-level failures (connection reset, deadline exceeded) are
	// worth another attempt.
	return err != nil
}
