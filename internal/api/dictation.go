package api

import "net/http"

type dictationHandler struct {
	ctrl Controller
}

// start begins a recording session. 409 when the engine is busy or the
// microphone cannot be opened; the status body carries the detail.
func (h *dictationHandler) start(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.StartRecording(); err != nil {
		WriteJSON(w, http.StatusConflict, struct {
			Error  string `json:"error"`
			Status any    `json:"status"`
		}{err.Error(), h.ctrl.Status()})
		return
	}
	WriteJSON(w, http.StatusOK, h.ctrl.Status())
}

// stop ends the recording and kicks off transcription. The run finishes
// asynchronously; poll state or watch run events for the outcome.
func (h *dictationHandler) stop(w http.ResponseWriter, r *http.Request) {
	h.ctrl.StopRecording()
	WriteJSON(w, http.StatusAccepted, h.ctrl.Status())
}

func (h *dictationHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.ctrl.CancelRecording()
	WriteJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *dictationHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Reset()
	WriteJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *dictationHandler) state(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.ctrl.Status())
}
