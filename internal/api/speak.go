package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/speak"
)

type speakHandler struct {
	provider speak.Provider
	log      zerolog.Logger
}

type speakRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"`
}

// synthesize returns the synthesized audio bytes directly; clients can
// pipe the body straight to a player.
func (h *speakHandler) synthesize(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteError(w, http.StatusServiceUnavailable, "speech synthesis not configured")
		return
	}

	var req speakRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	res, err := h.provider.Synthesize(r.Context(), speak.Request{
		Text:  req.Text,
		Model: req.Model,
		Voice: req.Voice,
	})
	if err != nil {
		h.log.Error().Err(err).Str("provider", h.provider.Name()).Msg("speech synthesis failed")
		WriteError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Audio)
}
