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

const sarvamEndpoint = "https://api.sarvam.ai/speech-to-text"

// SarvamClient calls the Sarvam AI saarika speech-to-text API.
// Implements the Provider interface.
type SarvamClient struct {
	creds    CredentialStore
	endpoint string
	client   *http.Client
}

// sarvamResponse is the JSON response from the saarika API.
type sarvamResponse struct {
	RequestID    string `json:"request_id"`
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

// NewSarvamClient creates a new Sarvam STT client.
func NewSarvamClient(creds CredentialStore, httpTimeout time.Duration) *SarvamClient {
	return &SarvamClient{
		creds:    creds,
		endpoint: sarvamEndpoint,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

// Name returns the provider identity.
func (sv *SarvamClient) Name() ID { return Sarvam }

// Configured reports whether an API subscription key is present.
func (sv *SarvamClient) Configured() bool { return sv.creds.Credential(Sarvam) != "" }

// Transcribe sends the audio buffer to Sarvam and returns the transcript.
// Sarvam authenticates via the api-subscription-key header rather than a
// bearer token.
func (sv *SarvamClient) Transcribe(ctx context.Context, audio Audio, opts Opts) (*Response, error) {
	key := sv.creds.Credential(Sarvam)
	if key == "" {
		return nil, errMissingCredential(Sarvam)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", audio.Filename)
	if err != nil {
		return nil, errTransport(Sarvam, err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, errTransport(Sarvam, err)
	}

	model := opts.Model
	if model == "" {
		model = "saarika:v2"
	}
	w.WriteField("model", model)

	if opts.Language != "" {
		w.WriteField("language_code", opts.Language)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sv.endpoint, &buf)
	if err != nil {
		return nil, errInvalidEndpoint(Sarvam, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("api-subscription-key", key)

	resp, err := sv.client.Do(req)
	if err != nil {
		return nil, errTransport(Sarvam, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errTransport(Sarvam, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errVendor(Sarvam, resp.StatusCode, body)
	}

	var result sarvamResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errMalformed(Sarvam, err)
	}

	if strings.TrimSpace(result.Transcript) == "" {
		return nil, errEmptyResult(Sarvam)
	}

	return &Response{Text: result.Transcript, Language: result.LanguageCode}, nil
}
