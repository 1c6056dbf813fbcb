package dictation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/metrics"
	"github.com/openwhisper/ow-engine/internal/transcribe"
)

// State of the dictation machine.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateDelivered  State = "delivered"
	StateFailed     State = "failed"
)

// Status is the observable surface of the state machine. The orchestrator is
// its sole writer.
type Status struct {
	State        State         `json:"state"`
	Text         string        `json:"text,omitempty"`
	Provider     transcribe.ID `json:"provider,omitempty"`
	FallbackUsed bool          `json:"fallback_used,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// RunConfig is the configuration snapshot for one transcription run. It is
// constructed fresh per run, never cached, so settings changes apply to the
// very next recording.
type RunConfig struct {
	Primary  transcribe.ID
	Fallback transcribe.ID // empty = fallback disabled
	Timeout  time.Duration
	Opts     map[transcribe.ID]transcribe.Opts
}

// ConfigSource yields a live RunConfig at the start of every run.
type ConfigSource interface {
	RunConfig() RunConfig
}

// ConfigFunc adapts a function to the ConfigSource interface.
type ConfigFunc func() RunConfig

func (f ConfigFunc) RunConfig() RunConfig { return f() }

// Recorder is the audio capture collaborator, a black box that yields one
// byte buffer per recording session.
type Recorder interface {
	Start() error
	Stop()
	Data() []byte // nil if nothing was captured
	Delete()
	Recording() bool
}

// Delivery is the final text plus run metadata for downstream consumers.
type Delivery struct {
	Text         string
	Provider     transcribe.ID
	FallbackUsed bool
	DurationMs   int64
}

// Sink receives the final text. Best-effort from the orchestrator's
// perspective: the implementation logs its own failures.
type Sink interface {
	Deliver(ctx context.Context, d Delivery)
}

// RunEvent is the structured observability record emitted once per run
// outcome. Fallback deliveries stay distinguishable from clean primary
// successes so vendor degradation is visible.
type RunEvent struct {
	Outcome      string `json:"outcome"` // "delivered" or "failed"
	Provider     string `json:"provider,omitempty"`
	FallbackUsed bool   `json:"fallback_used"`
	Reason       string `json:"reason,omitempty"` // classified primary-failure reason
	DurationMs   int64  `json:"duration_ms"`
}

// Events receives run events, fire-and-forget.
type Events interface {
	PublishRun(ev RunEvent)
}

// Archiver optionally receives a copy of the audio buffer before the
// orchestrator deletes it.
type Archiver interface {
	Archive(key string, data []byte, contentType string)
}

// ProviderFactory maps a provider identity to an adapter instance.
type ProviderFactory func(transcribe.ID) (transcribe.Provider, error)

// Options configures the orchestrator.
type Options struct {
	Recorder  Recorder
	Config    ConfigSource
	Providers ProviderFactory
	Sink      Sink
	Events    Events   // optional
	Archiver  Archiver // optional

	// ResetDelay is how long a terminal state stays visible before the
	// machine returns to Idle on its own. Zero disables the timer; the
	// caller then owns Reset.
	ResetDelay time.Duration

	// OnChange observes every state transition. Called outside the lock.
	OnChange func(Status)

	Log zerolog.Logger
}

// Orchestrator owns the end-to-end dictation flow: one recording session at
// a time, one transcription run per session, primary attempt with a single
// classified-failure fallback hop, and exactly-once cleanup of the audio
// buffer.
type Orchestrator struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	status Status
	seq    int // run sequence, guards stale auto-reset timers
	wg     sync.WaitGroup
}

const maxErrorLen = 200

// New creates an orchestrator in the Idle state.
func New(opts Options) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		status: Status{State: StateIdle},
	}
}

// Status returns a snapshot of the observable state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// StartRecording moves Idle to Recording. A recording-device failure is
// fatal for the session: surfaced as Failed, never retried, no fallback.
func (o *Orchestrator) StartRecording() error {
	if !o.transition(StateIdle, Status{State: StateRecording}) {
		return fmt.Errorf("cannot start recording while %s", o.Status().State)
	}
	if err := o.opts.Recorder.Start(); err != nil {
		metrics.RecordingFailures.Inc()
		o.opts.Log.Error().Err(err).Msg("recording device unavailable")
		o.setTerminal(Status{State: StateFailed, Error: truncate("recording device unavailable: " + err.Error())})
		o.publish(RunEvent{Outcome: "failed", Reason: "device_unavailable"})
		return err
	}
	return nil
}

// StopRecording moves Recording to Processing and launches the transcription
// run. No-op outside Recording, which guards duplicate stop signals and
// rejects a new run while one is already processing.
func (o *Orchestrator) StopRecording() {
	if !o.transition(StateRecording, Status{State: StateProcessing}) {
		return
	}
	o.opts.Recorder.Stop()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run()
	}()
}

// CancelRecording discards the session without transcribing. No-op outside
// Recording.
func (o *Orchestrator) CancelRecording() {
	if !o.transition(StateRecording, Status{State: StateIdle}) {
		return
	}
	o.opts.Recorder.Stop()
	o.opts.Recorder.Delete()
	o.opts.Log.Debug().Msg("recording cancelled")
}

// Reset returns a terminal state to Idle immediately. No-op elsewhere.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.status.State != StateDelivered && o.status.State != StateFailed {
		o.mu.Unlock()
		return
	}
	o.seq++
	o.status = Status{State: StateIdle}
	o.mu.Unlock()
	o.notify(Status{State: StateIdle})
}

// Close cancels any in-flight run context and waits for the run goroutine.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// run executes one orchestration run: snapshot config, attempt primary,
// fallback when eligible, deliver or fail. Entered only from Processing.
func (o *Orchestrator) run() {
	start := time.Now()
	rec := o.opts.Recorder
	// The buffer is deleted exactly once, on every exit path.
	defer rec.Delete()

	cfg := o.opts.Config.RunConfig()
	log := o.opts.Log.With().Str("primary", string(cfg.Primary)).Logger()

	data := rec.Data()
	if len(data) == 0 {
		log.Warn().Msg("no audio captured")
		o.finishFailed("none", false, "no audio", "no_audio", start)
		return
	}

	audio := transcribe.Audio{
		Data:        data,
		Filename:    "recording.wav",
		ContentType: "audio/wav",
	}

	if o.opts.Archiver != nil {
		o.opts.Archiver.Archive(archiveKey(start), data, audio.ContentType)
	}

	provider := cfg.Primary
	fallbackUsed := false
	reason := ""

	resp, err := o.attempt(provider, audio, cfg)
	if err != nil {
		cls := transcribe.Classify(err)
		reason = cls.Reason
		log.Warn().Err(err).
			Str("reason", cls.Reason).
			Bool("retriable", cls.Retriable).
			Msg("primary attempt failed")

		if !cls.Retriable || cfg.Fallback == "" || cfg.Fallback == cfg.Primary {
			o.finishFailed(string(provider), false, failMessage(err), reason, start)
			return
		}

		metrics.FallbackAttempts.WithLabelValues(cls.Reason).Inc()
		provider = cfg.Fallback
		fallbackUsed = true
		resp, err = o.attempt(provider, audio, cfg)
		if err != nil {
			log.Warn().Err(err).Str("fallback", string(provider)).Msg("fallback attempt failed")
			o.finishFailed(string(provider), true, failMessage(err), reason, start)
			return
		}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		o.finishFailed(string(provider), fallbackUsed, "empty result", "empty_result", start)
		return
	}

	o.opts.Sink.Deliver(o.ctx, Delivery{
		Text:         text,
		Provider:     provider,
		FallbackUsed: fallbackUsed,
		DurationMs:   time.Since(start).Milliseconds(),
	})
	metrics.DeliveriesTotal.Inc()
	metrics.RunsTotal.WithLabelValues(string(provider), "delivered").Inc()

	o.setTerminal(Status{
		State:        StateDelivered,
		Text:         text,
		Provider:     provider,
		FallbackUsed: fallbackUsed,
	})
	o.publish(RunEvent{
		Outcome:      "delivered",
		Provider:     string(provider),
		FallbackUsed: fallbackUsed,
		Reason:       reason,
		DurationMs:   time.Since(start).Milliseconds(),
	})

	log.Info().
		Str("provider", string(provider)).
		Bool("fallback_used", fallbackUsed).
		Int("chars", len(text)).
		Dur("duration_ms", time.Since(start)).
		Msg("transcription delivered")
}

// attempt runs one provider call under the configured deadline. At most one
// attempt per provider per run; the caller enforces the fallback gate.
func (o *Orchestrator) attempt(id transcribe.ID, audio transcribe.Audio, cfg RunConfig) (*transcribe.Response, error) {
	p, err := o.opts.Providers(id)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := transcribe.RunAttempt(o.ctx, p, audio, cfg.Opts[id], cfg.Timeout)
	metrics.AttemptDuration.WithLabelValues(string(id)).Observe(time.Since(start).Seconds())
	return resp, err
}

func (o *Orchestrator) finishFailed(provider string, fallbackUsed bool, msg, reason string, start time.Time) {
	metrics.RunsTotal.WithLabelValues(provider, "failed").Inc()
	o.setTerminal(Status{State: StateFailed, Error: truncate(msg)})
	o.publish(RunEvent{
		Outcome:      "failed",
		Provider:     provider,
		FallbackUsed: fallbackUsed,
		Reason:       reason,
		DurationMs:   time.Since(start).Milliseconds(),
	})
}

// transition atomically moves from one state to another. Returns false when
// the machine is not in the expected state.
func (o *Orchestrator) transition(from State, to Status) bool {
	o.mu.Lock()
	if o.status.State != from {
		o.mu.Unlock()
		return false
	}
	o.status = to
	o.mu.Unlock()
	o.notify(to)
	return true
}

// setTerminal records a Delivered or Failed status and schedules the return
// to Idle. The sequence number keeps a stale timer from clobbering a newer
// run, so the machine never sticks in a terminal-looking state.
func (o *Orchestrator) setTerminal(st Status) {
	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.status = st
	o.mu.Unlock()
	o.notify(st)

	if o.opts.ResetDelay > 0 {
		time.AfterFunc(o.opts.ResetDelay, func() {
			o.mu.Lock()
			if o.seq != seq {
				o.mu.Unlock()
				return
			}
			o.seq++
			o.status = Status{State: StateIdle}
			o.mu.Unlock()
			o.notify(Status{State: StateIdle})
		})
	}
}

func (o *Orchestrator) notify(st Status) {
	if o.opts.OnChange != nil {
		o.opts.OnChange(st)
	}
}

func (o *Orchestrator) publish(ev RunEvent) {
	if o.opts.Events != nil {
		o.opts.Events.PublishRun(ev)
	}
}

// failMessage extracts the short user-presentable message from a classified
// error, falling back to the raw error text.
func failMessage(err error) string {
	var pe *transcribe.ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

func truncate(s string) string {
	if len(s) > maxErrorLen {
		return s[:maxErrorLen]
	}
	return s
}

func archiveKey(t time.Time) string {
	return t.UTC().Format("2006/01/02/150405.000") + ".wav"
}
