package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/dictation"
	"github.com/openwhisper/ow-engine/internal/history"
	"github.com/openwhisper/ow-engine/internal/speak"
)

// Controller is the dictation surface the HTTP layer drives. Satisfied
// by *dictation.Orchestrator.
type Controller interface {
	Status() dictation.Status
	StartRecording() error
	StopRecording()
	CancelRecording()
	Reset()
}

// Options wires the server's collaborators. History, Events and Speech
// are optional; handlers report not_configured when they are absent.
type Options struct {
	Addr         string
	AuthToken    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Controller    Controller
	History       *history.DB
	Events        Connectivity
	Speech        speak.Provider
	ProviderState func() map[string]bool
	RecorderCheck func() error

	Version   string
	StartTime time.Time
	Log       zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(CORS)

	// Unauthenticated: health and metrics
	health := NewHealthHandler(opts)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	d := &dictationHandler{ctrl: opts.Controller}
	t := &transcriptionsHandler{db: opts.History}
	s := &speakHandler{provider: opts.Speech, log: opts.Log}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.AuthToken))

		r.Post("/api/v1/dictation/start", d.start)
		r.Post("/api/v1/dictation/stop", d.stop)
		r.Post("/api/v1/dictation/cancel", d.cancel)
		r.Post("/api/v1/dictation/reset", d.reset)
		r.Get("/api/v1/dictation/state", d.state)

		r.Get("/api/v1/transcriptions", t.list)
		r.Post("/api/v1/speak", s.synthesize)
	})

	return &Server{
		http: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
		log: opts.Log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
