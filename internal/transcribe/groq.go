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

const groqEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"

// GroqClient calls Groq's OpenAI-compatible transcription endpoint.
// Implements the Provider interface.
type GroqClient struct {
	creds    CredentialStore
	endpoint string
	client   *http.Client
}

// groqResponse is the JSON response with response_format=json.
type groqResponse struct {
	Text string `json:"text"`
}

// NewGroqClient creates a new Groq STT client. httpTimeout is an outer
// safety net; the per-attempt deadline arrives via context.
func NewGroqClient(creds CredentialStore, httpTimeout time.Duration) *GroqClient {
	return &GroqClient{
		creds:    creds,
		endpoint: groqEndpoint,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

// Name returns the provider identity.
func (g *GroqClient) Name() ID { return Groq }

// Configured reports whether an API key is present.
func (g *GroqClient) Configured() bool { return g.creds.Credential(Groq) != "" }

// Transcribe sends the audio buffer to Groq as multipart/form-data and
// returns the transcript. All failures are classified *ProviderError values.
func (g *GroqClient) Transcribe(ctx context.Context, audio Audio, opts Opts) (*Response, error) {
	key := g.creds.Credential(Groq)
	if key == "" {
		return nil, errMissingCredential(Groq)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", audio.Filename)
	if err != nil {
		return nil, errTransport(Groq, err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, errTransport(Groq, err)
	}

	model := opts.Model
	if model == "" {
		model = "whisper-large-v3"
	}
	w.WriteField("model", model)

	if opts.Language != "" {
		w.WriteField("language", opts.Language)
	}
	w.WriteField("response_format", "json")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, &buf)
	if err != nil {
		return nil, errInvalidEndpoint(Groq, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errTransport(Groq, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errTransport(Groq, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errVendor(Groq, resp.StatusCode, body)
	}

	var result groqResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errMalformed(Groq, err)
	}

	if strings.TrimSpace(result.Text) == "" {
		return nil, errEmptyResult(Groq)
	}

	return &Response{Text: result.Text, Language: opts.Language}, nil
}
