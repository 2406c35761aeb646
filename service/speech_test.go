package service

import (
	"context"
	"errors"
	"testing"

	"interview-transcriber/config"
	"interview-transcriber/dto"
)

func testTTSConfig() config.TTS {
	return config.TTS{
		Voice:  "alloy",
		Format: "mp3",
	}
}

func newSpeechFixture(t *testing.T) (SpeechService, *countingSynthesizer) {
	t.Helper()
	repo := newMemRepo()
	cache := NewArtifactCache(repo, testCacheConfig(t.TempDir()))
	synth := &countingSynthesizer{audio: []byte("synthesized-audio")}
	return NewSpeechService(cache, synth, testTTSConfig()), synth
}

func TestSynthesizeCachesByTextVoiceFormat(t *testing.T) {
	svc, synth := newSpeechFixture(t)
	ctx := context.Background()

	first, err := svc.Synthesize(ctx, dto.SpeechRequest{Text: "tell me about yourself"})
	if err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	if first.Cached {
		t.Errorf("first synthesis reported cached")
	}
	if first.ContentType != "audio/mpeg" {
		t.Errorf("content type = %s, want audio/mpeg", first.ContentType)
	}

	second, err := svc.Synthesize(ctx, dto.SpeechRequest{Text: "tell me about yourself"})
	if err != nil {
		t.Fatalf("second Synthesize: %v", err)
	}
	if !second.Cached {
		t.Errorf("repeat request not served from cache")
	}
	if synth.calls != 1 {
		t.Errorf("synthesizer called %d times, want 1", synth.calls)
	}
	if first.Key != second.Key {
		t.Errorf("keys differ across identical requests: %s vs %s", first.Key, second.Key)
	}
	if second.ArtifactURL != "/api/v1/artifacts/"+second.Key {
		t.Errorf("artifact url = %s", second.ArtifactURL)
	}
}

func TestSynthesizeDistinguishesVoices(t *testing.T) {
	svc, synth := newSpeechFixture(t)
	ctx := context.Background()

	first, err := svc.Synthesize(ctx, dto.SpeechRequest{Text: "next question", Voice: "alloy"})
	if err != nil {
		t.Fatalf("Synthesize alloy: %v", err)
	}
	second, err := svc.Synthesize(ctx, dto.SpeechRequest{Text: "next question", Voice: "nova"})
	if err != nil {
		t.Fatalf("Synthesize nova: %v", err)
	}

	if first.Key == second.Key {
		t.Errorf("different voices shared a cache key")
	}
	if synth.calls != 2 {
		t.Errorf("synthesizer called %d times, want 2", synth.calls)
	}
}

func TestSynthesizeAppliesConfiguredDefaults(t *testing.T) {
	svc, synth := newSpeechFixture(t)
	ctx := context.Background()

	implicit, err := svc.Synthesize(ctx, dto.SpeechRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize with defaults: %v", err)
	}
	explicit, err := svc.Synthesize(ctx, dto.SpeechRequest{Text: "hello", Voice: "alloy", Format: "mp3"})
	if err != nil {
		t.Fatalf("Synthesize explicit: %v", err)
	}

	if implicit.Key != explicit.Key {
		t.Errorf("default voice/format must hash like the explicit values")
	}
	if synth.calls != 1 {
		t.Errorf("synthesizer called %d times, want 1", synth.calls)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	svc, synth := newSpeechFixture(t)

	_, err := svc.Synthesize(context.Background(), dto.SpeechRequest{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if synth.calls != 0 {
		t.Errorf("synthesizer called on invalid request")
	}
}

func TestArtifactLookup(t *testing.T) {
	svc, _ := newSpeechFixture(t)
	ctx := context.Background()

	resp, err := svc.Synthesize(ctx, dto.SpeechRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	entry, err := svc.Artifact(ctx, resp.Key)
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if entry.ContentType != resp.ContentType {
		t.Errorf("content type = %s, want %s", entry.ContentType, resp.ContentType)
	}

	if _, err := svc.Artifact(ctx, "missing-key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing artifact: want ErrNotFound, got %v", err)
	}
}
