package transcribe

import (
	"errors"
	"fmt"
	"net/http"
)

// Classification is the fallback-eligibility verdict for one failed attempt.
type Classification struct {
	Retriable bool
	Reason    string
}

// Classify decides whether a failed attempt is worth retrying on a different
// provider. A fallback hop only pays for its latency when the failure is
// plausibly transient or vendor-side; a bad credential or unreadable audio
// fails identically everywhere. Pure function: same error, same verdict.
func Classify(err error) Classification {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return Classification{Retriable: false, Reason: "unknown"}
	}

	switch pe.Kind {
	case KindTimeout:
		return Classification{Retriable: true, Reason: "timeout"}

	case KindVendor:
		switch {
		case pe.Status == http.StatusTooManyRequests:
			return Classification{Retriable: true, Reason: "rate_limit"}
		case pe.Status >= 500:
			return Classification{Retriable: true, Reason: fmt.Sprintf("api_error_%d", pe.Status)}
		default:
			return Classification{Retriable: false, Reason: fmt.Sprintf("api_error_%d", pe.Status)}
		}

	case KindTransport:
		// DNS failure, refused connection, TLS, mid-transfer disconnect —
		// all coarsely retriable. Finer distinctions would change no
		// fallback decision.
		return Classification{Retriable: true, Reason: "network_error"}

	default:
		return Classification{Retriable: false, Reason: string(pe.Kind)}
	}
}
