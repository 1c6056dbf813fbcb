package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const elevenLabsEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

// ElevenLabsClient calls the ElevenLabs Speech-to-Text (scribe) API.
// Implements the Provider interface.
type ElevenLabsClient struct {
	creds    CredentialStore
	endpoint string
	client   *http.Client
}

// elevenLabsResponse is the JSON response from the scribe API.
type elevenLabsResponse struct {
	LanguageCode string `json:"language_code"`
	Text         string `json:"text"`
}

// NewElevenLabsClient creates a new ElevenLabs STT client.
func NewElevenLabsClient(creds CredentialStore, httpTimeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		creds:    creds,
		endpoint: elevenLabsEndpoint,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

// Name returns the provider identity.
func (el *ElevenLabsClient) Name() ID { return ElevenLabs }

// Configured reports whether an API key is present.
func (el *ElevenLabsClient) Configured() bool { return el.creds.Credential(ElevenLabs) != "" }

// Transcribe sends the audio buffer to ElevenLabs and returns the transcript.
func (el *ElevenLabsClient) Transcribe(ctx context.Context, audio Audio, opts Opts) (*Response, error) {
	key := el.creds.Credential(ElevenLabs)
	if key == "" {
		return nil, errMissingCredential(ElevenLabs)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", audio.Filename)
	if err != nil {
		return nil, errTransport(ElevenLabs, err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, errTransport(ElevenLabs, err)
	}

	model := opts.Model
	if model == "" {
		model = "scribe_v1"
	}
	w.WriteField("model_id", model)

	if opts.Language != "" {
		w.WriteField("language_code", opts.Language)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, el.endpoint, &buf)
	if err != nil {
		return nil, errInvalidEndpoint(ElevenLabs, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("xi-api-key", key)

	resp, err := el.client.Do(req)
	if err != nil {
		return nil, errTransport(ElevenLabs, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errTransport(ElevenLabs, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errVendor(ElevenLabs, resp.StatusCode, body)
	}

	var result elevenLabsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errMalformed(ElevenLabs, err)
	}

	if strings.TrimSpace(result.Text) == "" {
		return nil, errEmptyResult(ElevenLabs)
	}

	return &Response{Text: result.Text, Language: result.LanguageCode}, nil
}
