package transcribe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies an adapter failure.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindInvalidEndpoint   ErrorKind = "invalid_endpoint"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindVendor            ErrorKind = "vendor_error"
	KindEmptyResult       ErrorKind = "empty_result"
	KindTransport         ErrorKind = "transport_error"
	KindTimeout           ErrorKind = "timeout"
)

// ProviderError is a classified failure from one adapter attempt. Message is
// short and user-presentable; Error() adds the provider and kind for logs.
type ProviderError struct {
	Provider ID
	Kind     ErrorKind
	Status   int // HTTP status for KindVendor, 0 otherwise
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func errMissingCredential(p ID) *ProviderError {
	return &ProviderError{Provider: p, Kind: KindMissingCredential,
		Message: p.DisplayName() + " API key not configured"}
}

func errInvalidEndpoint(p ID, err error) *ProviderError {
	return &ProviderError{Provider: p, Kind: KindInvalidEndpoint,
		Message: fmt.Sprintf("invalid %s endpoint: %v", p.DisplayName(), err)}
}

func errMalformed(p ID, err error) *ProviderError {
	return &ProviderError{Provider: p, Kind: KindMalformedResponse,
		Message: fmt.Sprintf("could not decode %s response: %v", p.DisplayName(), err)}
}

func errVendor(p ID, status int, body []byte) *ProviderError {
	return &ProviderError{Provider: p, Kind: KindVendor, Status: status,
		Message: fmt.Sprintf("%s error (status %d): %s", p.DisplayName(), status, vendorMessage(body))}
}

func errEmptyResult(p ID) *ProviderError {
	return &ProviderError{Provider: p, Kind: KindEmptyResult,
		Message: p.DisplayName() + " returned an empty transcript"}
}

func errTransport(p ID, err error) *ProviderError {
	return &ProviderError{Provider: p, Kind: KindTransport,
		Message: fmt.Sprintf("%s request failed: %v", p.DisplayName(), err)}
}

func errTimeout(p ID, timeout time.Duration) *ProviderError {
	return &ProviderError{Provider: p, Kind: KindTimeout,
		Message: fmt.Sprintf("%s timed out after %s", p.DisplayName(), timeout)}
}

// vendorMessage extracts a human-readable error from a vendor response body.
// Tries the two common JSON shapes, then falls back to the truncated raw body.
func vendorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Message != "" {
		return flat.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
