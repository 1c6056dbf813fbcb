package api

import (
	"net/http"

	"github.com/openwhisper/ow-engine/internal/history"
)

type transcriptionsHandler struct {
	db *history.DB
}

type transcriptionsResponse struct {
	Transcriptions []history.Entry `json:"transcriptions"`
	Count          int             `json:"count"`
}

// list returns recent deliveries, newest first. ?limit= caps the page.
func (h *transcriptionsHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusServiceUnavailable, "history not configured")
		return
	}

	limit, _ := QueryInt(r, "limit")
	entries, err := h.db.ListRecent(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	WriteJSON(w, http.StatusOK, transcriptionsResponse{
		Transcriptions: entries,
		Count:          len(entries),
	})
}
