// Package speak turns text back into audio. It is the inverse of the
// transcription pipeline and shares its adapter shape: one client per
// vendor behind a small Provider interface.
package speak

import (
	"context"
	"fmt"
)

// Request describes one synthesis call.
type Request struct {
	Text  string
	Model string // vendor model id, empty for the vendor default
	Voice string // vendor voice id, empty for the vendor default
}

// Result is the synthesized audio.
type Result struct {
	Audio       []byte
	ContentType string
}

// Provider synthesizes speech with one vendor.
type Provider interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Options carries vendor credentials and defaults for New.
type Options struct {
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	OpenAIKey         string
	OpenAIModel       string
	OpenAIVoice       string
}

// New returns the named provider, "elevenlabs" or "openai".
func New(name string, opts Options) (Provider, error) {
	switch name {
	case "elevenlabs":
		return newElevenLabs(opts.ElevenLabsKey, opts.ElevenLabsVoiceID), nil
	case "openai":
		return newOpenAI(opts.OpenAIKey, opts.OpenAIModel, opts.OpenAIVoice), nil
	default:
		return nil, fmt.Errorf("unknown speech provider: %q", name)
	}
}
