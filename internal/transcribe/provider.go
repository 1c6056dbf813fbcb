package transcribe

import "context"

// ID identifies a speech-to-text vendor. The set is closed at compile time:
// adapter selection switches over these values and nothing registers at
// runtime.
type ID string

const (
	Groq       ID = "groq"
	ElevenLabs ID = "elevenlabs"
	Deepgram   ID = "deepgram"
	Sarvam     ID = "sarvam"
)

// IDs lists every known provider.
func IDs() []ID { return []ID{Groq, ElevenLabs, Deepgram, Sarvam} }

// Valid reports whether id names a known provider.
func (id ID) Valid() bool {
	switch id {
	case Groq, ElevenLabs, Deepgram, Sarvam:
		return true
	}
	return false
}

// DisplayName returns the vendor name used in user-facing messages.
func (id ID) DisplayName() string {
	switch id {
	case Groq:
		return "Groq"
	case ElevenLabs:
		return "ElevenLabs"
	case Deepgram:
		return "Deepgram"
	case Sarvam:
		return "Sarvam"
	}
	return string(id)
}

// Audio is one recorded buffer plus its logical filename and content-type
// hint. It is produced once per recording session and never mutated; the
// orchestrator owns its lifecycle.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string // "audio/wav"
}

// Opts are per-request options passed through opaquely to the vendor.
type Opts struct {
	Model    string // vendor model identifier, empty = adapter default
	Language string // ISO-639 hint, empty = vendor default/auto
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
}

// CredentialStore resolves API keys by provider. Adapters consult it at
// call time so a key change applies to the very next attempt.
type CredentialStore interface {
	Credential(id ID) string // empty = not configured
}

// Provider is the interface for speech-to-text backends.
type Provider interface {
	// Transcribe sends one audio buffer to the vendor and returns non-empty
	// text or a *ProviderError. Adapters mutate no shared state; the only
	// side effect is the outbound call.
	Transcribe(ctx context.Context, audio Audio, opts Opts) (*Response, error)

	Name() ID

	// Configured reports whether a credential is present. Health/UI hint
	// only: callers always attempt and let the adapter fail with
	// missing-credential, keeping the failure path uniform.
	Configured() bool
}
