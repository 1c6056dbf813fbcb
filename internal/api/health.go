package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/openwhisper/ow-engine/internal/history"
)

// Connectivity reports whether an external link is currently up.
type Connectivity interface {
	IsConnected() bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Providers     map[string]string `json:"providers,omitempty"`
}

type HealthHandler struct {
	db            *history.DB
	events        Connectivity
	providerState func() map[string]bool
	recorderCheck func() error
	version       string
	startTime     time.Time
}

func NewHealthHandler(opts Options) *HealthHandler {
	return &HealthHandler{
		db:            opts.History,
		events:        opts.Events,
		providerState: opts.ProviderState,
		recorderCheck: opts.RecorderCheck,
		version:       opts.Version,
		startTime:     opts.StartTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Recorder binary check. Without it no dictation can start.
	if h.recorderCheck != nil {
		if err := h.recorderCheck(); err != nil {
			checks["recorder"] = "missing"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["recorder"] = "ok"
		}
	}

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if h.events != nil {
		if h.events.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	var providers map[string]string
	if h.providerState != nil {
		providers = make(map[string]string)
		for name, configured := range h.providerState() {
			if configured {
				providers[name] = "configured"
			} else {
				providers[name] = "missing_key"
			}
		}
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Providers:     providers,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
