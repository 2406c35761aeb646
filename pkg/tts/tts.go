// Package tts defines the text-to-speech provider boundary.
package tts

import "context"

type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Text   string
	Voice  string
	Format string
}

type Result struct {
	Audio       []byte
	ContentType string
}
