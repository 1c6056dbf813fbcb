package speak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const elevenLabsTTSEndpoint = "https://api.elevenlabs.io/v1/text-to-speech"

const (
	defaultElevenLabsTTSModel = "eleven_multilingual_v2"
	defaultElevenLabsVoice    = "21m00Tcm4TlvDq8ikWAM" // Rachel
)

type elevenLabsTTS struct {
	apiKey   string
	voiceID  string
	endpoint string
	client   *http.Client
}

func newElevenLabs(apiKey, voiceID string) *elevenLabsTTS {
	if voiceID == "" {
		voiceID = defaultElevenLabsVoice
	}
	return &elevenLabsTTS{
		apiKey:   apiKey,
		voiceID:  voiceID,
		endpoint: elevenLabsTTSEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *elevenLabsTTS) Name() string { return "elevenlabs" }

func (e *elevenLabsTTS) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs API key not configured")
	}

	model := req.Model
	if model == "" {
		model = defaultElevenLabsTTSModel
	}
	voice := req.Voice
	if voice == "" {
		voice = e.voiceID
	}

	payload, err := json.Marshal(map[string]any{
		"text":     req.Text,
		"model_id": model,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.endpoint+"/"+voice, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs returned %d: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs response: %w", err)
	}
	return &Result{Audio: audio, ContentType: "audio/mpeg"}, nil
}
