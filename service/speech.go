package service

import (
	"context"
	"fmt"

	"interview-transcriber/config"
	"interview-transcriber/dto"
	"interview-transcriber/entities"
	"interview-transcriber/pkg/tts"
)

// SpeechService synthesizes speech through the content-addressed cache, so
// repeated requests for the same text, voice, and format never hit the
// provider twice.
type SpeechService interface {
	Synthesize(ctx context.Context, req dto.SpeechRequest) (*dto.SpeechResponse, error)
	Artifact(ctx context.Context, key string) (*entities.CacheEntry, error)
}

type speechService struct {
	cache ArtifactCache
	synth tts.Synthesizer
	cfg   config.TTS
}

func NewSpeechService(cache ArtifactCache, synth tts.Synthesizer, cfg config.TTS) SpeechService {
	return &speechService{
		cache: cache,
		synth: synth,
		cfg:   cfg,
	}
}

func (s *speechService) Synthesize(ctx context.Context, req dto.SpeechRequest) (*dto.SpeechResponse, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}
	format := req.Format
	if format == "" {
		format = s.cfg.Format
	}

	fp := Fingerprint{
		Kind: "speech",
		Inputs: map[string]string{
			"text":   req.Text,
			"voice":  voice,
			"format": format,
		},
	}

	entry, cached, err := s.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (*Artifact, error) {
		result, err := s.synth.Synthesize(ctx, tts.Request{
			Text:   req.Text,
			Voice:  voice,
			Format: format,
		})
		if err != nil {
			return nil, err
		}
		return &Artifact{
			Data:        result.Audio,
			ContentType: result.ContentType,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.SpeechResponse{
		Key:         entry.Key,
		ContentType: entry.ContentType,
		SizeBytes:   entry.SizeBytes,
		Cached:      cached,
		ArtifactURL: "/api/v1/artifacts/" + entry.Key,
	}, nil
}

func (s *speechService) Artifact(ctx context.Context, key string) (*entities.CacheEntry, error) {
	return s.cache.Get(ctx, key)
}
