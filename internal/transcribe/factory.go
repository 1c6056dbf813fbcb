package transcribe

import (
	"fmt"
	"time"
)

// New maps a provider identity to its adapter. The provider set is closed by
// design: new vendors are added here, not through runtime registration.
func New(id ID, creds CredentialStore, httpTimeout time.Duration) (Provider, error) {
	switch id {
	case Groq:
		return NewGroqClient(creds, httpTimeout), nil
	case ElevenLabs:
		return NewElevenLabsClient(creds, httpTimeout), nil
	case Deepgram:
		return NewDeepgramClient(creds, httpTimeout), nil
	case Sarvam:
		return NewSarvamClient(creds, httpTimeout), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider: %q", id)
	}
}
