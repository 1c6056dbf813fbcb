package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const deepgramEndpoint = "https://api.deepgram.com/v1/listen"

// DeepgramClient calls Deepgram's prerecorded transcription API. Unlike the
// multipart vendors, Deepgram takes the raw audio bytes as the request body
// with query-string options. Implements the Provider interface.
type DeepgramClient struct {
	creds    CredentialStore
	endpoint string
	client   *http.Client
}

// deepgramResponse is the JSON response from /v1/listen.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// NewDeepgramClient creates a new Deepgram STT client.
func NewDeepgramClient(creds CredentialStore, httpTimeout time.Duration) *DeepgramClient {
	return &DeepgramClient{
		creds:    creds,
		endpoint: deepgramEndpoint,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

// Name returns the provider identity.
func (dg *DeepgramClient) Name() ID { return Deepgram }

// Configured reports whether an API key is present.
func (dg *DeepgramClient) Configured() bool { return dg.creds.Credential(Deepgram) != "" }

// Transcribe sends the audio buffer to Deepgram and returns the transcript
// from the first alternative of the first channel.
func (dg *DeepgramClient) Transcribe(ctx context.Context, audio Audio, opts Opts) (*Response, error) {
	key := dg.creds.Credential(Deepgram)
	if key == "" {
		return nil, errMissingCredential(Deepgram)
	}

	u, err := url.Parse(dg.endpoint)
	if err != nil {
		return nil, errInvalidEndpoint(Deepgram, err)
	}
	q := u.Query()
	model := opts.Model
	if model == "" {
		model = "nova-2"
	}
	q.Set("model", model)
	q.Set("smart_format", "true")
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(audio.Data))
	if err != nil {
		return nil, errInvalidEndpoint(Deepgram, err)
	}
	ct := audio.ContentType
	if ct == "" {
		ct = "audio/wav"
	}
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Token "+key)

	resp, err := dg.client.Do(req)
	if err != nil {
		return nil, errTransport(Deepgram, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errTransport(Deepgram, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errVendor(Deepgram, resp.StatusCode, body)
	}

	var result deepgramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errMalformed(Deepgram, err)
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return nil, errEmptyResult(Deepgram)
	}
	text := result.Results.Channels[0].Alternatives[0].Transcript
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyResult(Deepgram)
	}

	return &Response{Text: text, Language: opts.Language}, nil
}
