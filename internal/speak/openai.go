package speak

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

type openAITTS struct {
	client *openai.Client
	model  string
	voice  string
}

func newOpenAI(apiKey, model, voice string) *openAITTS {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &openAITTS{
		client: openai.NewClient(apiKey),
		model:  model,
		voice:  voice,
	}
}

func (o *openAITTS) Name() string { return "openai" }

func (o *openAITTS) Synthesize(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai speech response: %w", err)
	}
	return &Result{Audio: audio, ContentType: "audio/mpeg"}, nil
}
