package dictation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/transcribe"
)

// fakeRecorder counts lifecycle calls so tests can assert exactly-once
// buffer cleanup.
type fakeRecorder struct {
	mu        sync.Mutex
	data      []byte
	startErr  error
	recording bool

	starts  int
	stops   int
	deletes int
}

func (r *fakeRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.recording = true
	return nil
}

func (r *fakeRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.recording = false
}

func (r *fakeRecorder) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

func (r *fakeRecorder) Delete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	r.data = nil
}

func (r *fakeRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *fakeRecorder) deleteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deletes
}

// setData reloads the buffer for a follow-up run.
func (r *fakeRecorder) setData(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data
}

// waitDeleted blocks until the run's deferred cleanup has happened.
func (r *fakeRecorder) waitDeleted(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for r.deleteCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("buffer deletes = %d, want %d", r.deleteCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

// scriptedProvider returns a fixed response or error after an optional
// delay, and counts invocations for the at-most-one-attempt property.
type scriptedProvider struct {
	id    transcribe.ID
	resp  *transcribe.Response
	err   error
	delay time.Duration
	block bool

	mu    sync.Mutex
	calls int
}

func (p *scriptedProvider) Transcribe(ctx context.Context, audio transcribe.Audio, opts transcribe.Opts) (*transcribe.Response, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.resp, p.err
}

func (p *scriptedProvider) Name() transcribe.ID { return p.id }
func (p *scriptedProvider) Configured() bool    { return true }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeSink struct {
	mu       sync.Mutex
	text     string
	provider transcribe.ID
	calls    int
}

func (s *fakeSink) Deliver(ctx context.Context, d Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.text = d.Text
	s.provider = d.Provider
}

func (s *fakeSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeEvents struct {
	mu     sync.Mutex
	events []RunEvent
}

func (e *fakeEvents) PublishRun(ev RunEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *fakeEvents) last(t *testing.T) RunEvent {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.events) == 0 {
		t.Fatal("no run event published")
	}
	return e.events[len(e.events)-1]
}

type harness struct {
	orch     *Orchestrator
	rec      *fakeRecorder
	sink     *fakeSink
	events   *fakeEvents
	statuses chan Status
}

func newHarness(t *testing.T, cfg RunConfig, providers map[transcribe.ID]transcribe.Provider) *harness {
	t.Helper()
	h := &harness{
		rec:      &fakeRecorder{data: []byte("RIFFfake")},
		sink:     &fakeSink{},
		events:   &fakeEvents{},
		statuses: make(chan Status, 32),
	}
	h.orch = New(Options{
		Recorder: h.rec,
		Config:   ConfigFunc(func() RunConfig { return cfg }),
		Providers: func(id transcribe.ID) (transcribe.Provider, error) {
			p, ok := providers[id]
			if !ok {
				return nil, fmt.Errorf("unknown transcription provider: %q", id)
			}
			return p, nil
		},
		Sink:     h.sink,
		Events:   h.events,
		OnChange: func(st Status) { h.statuses <- st },
		Log:      zerolog.Nop(),
	})
	t.Cleanup(h.orch.Close)
	return h
}

// record drives the machine through Idle → Recording → Processing.
func (h *harness) record(t *testing.T) {
	t.Helper()
	if err := h.orch.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.orch.StopRecording()
}

// waitTerminal consumes status changes until Delivered or Failed.
func (h *harness) waitTerminal(t *testing.T) Status {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-h.statuses:
			if st.State == StateDelivered || st.State == StateFailed {
				return st
			}
		case <-deadline:
			t.Fatalf("no terminal state reached, current: %+v", h.orch.Status())
		}
	}
}

func runCfg(primary, fallback transcribe.ID) RunConfig {
	return RunConfig{Primary: primary, Fallback: fallback, Timeout: time.Second}
}

func TestRun_PrimarySuccess(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, resp: &transcribe.Response{Text: "hello world"}}
	h := newHarness(t, runCfg(transcribe.Groq, transcribe.Deepgram), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateDelivered {
		t.Fatalf("state = %s, want delivered (%+v)", st.State, st)
	}
	if st.Text != "hello world" || st.Provider != transcribe.Groq {
		t.Errorf("delivered %q via %s, want %q via groq", st.Text, st.Provider, "hello world")
	}
	if st.FallbackUsed {
		t.Error("fallback marked used on clean primary success")
	}
	if h.sink.callCount() != 1 {
		t.Errorf("sink calls = %d, want 1", h.sink.callCount())
	}
	if n := h.rec.deleteCount(); n != 1 {
		t.Errorf("buffer deletes = %d, want exactly 1", n)
	}
	ev := h.events.last(t)
	if ev.Outcome != "delivered" || ev.FallbackUsed || ev.Reason != "" {
		t.Errorf("run event = %+v", ev)
	}
}

func TestRun_TimeoutThenFallbackSuccess(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, block: true}
	deepgram := &scriptedProvider{id: transcribe.Deepgram, resp: &transcribe.Response{Text: "hi"}}
	cfg := runCfg(transcribe.Groq, transcribe.Deepgram)
	cfg.Timeout = 50 * time.Millisecond
	h := newHarness(t, cfg, map[transcribe.ID]transcribe.Provider{
		transcribe.Groq:     groq,
		transcribe.Deepgram: deepgram,
	})

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateDelivered || st.Text != "hi" || st.Provider != transcribe.Deepgram {
		t.Fatalf("status = %+v, want deepgram delivering %q", st, "hi")
	}
	if !st.FallbackUsed {
		t.Error("fallback delivery not marked")
	}
	ev := h.events.last(t)
	if !ev.FallbackUsed || ev.Reason != "timeout" {
		t.Errorf("run event = %+v, want fallback_used with reason timeout", ev)
	}
	if n := h.rec.deleteCount(); n != 1 {
		t.Errorf("buffer deletes = %d, want exactly 1", n)
	}
	if groq.callCount() != 1 || deepgram.callCount() != 1 {
		t.Errorf("attempts groq=%d deepgram=%d, want one each", groq.callCount(), deepgram.callCount())
	}
}

func TestRun_TerminalFailureSkipsFallback(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, err: &transcribe.ProviderError{
		Provider: transcribe.Groq,
		Kind:     transcribe.KindMissingCredential,
		Message:  "Groq API key not configured",
	}}
	deepgram := &scriptedProvider{id: transcribe.Deepgram, resp: &transcribe.Response{Text: "never"}}
	h := newHarness(t, runCfg(transcribe.Groq, transcribe.Deepgram), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq:     groq,
		transcribe.Deepgram: deepgram,
	})

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	if st.Error != "Groq API key not configured" {
		t.Errorf("error message = %q", st.Error)
	}
	if deepgram.callCount() != 0 {
		t.Error("fallback attempted for a non-retriable failure")
	}
	if n := h.rec.deleteCount(); n != 1 {
		t.Errorf("buffer deletes = %d, want exactly 1", n)
	}
}

func TestRun_RetriableFailureNoFallbackConfigured(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, err: &transcribe.ProviderError{
		Provider: transcribe.Groq,
		Kind:     transcribe.KindVendor,
		Status:   503,
		Message:  "Groq error (status 503): overloaded",
	}}
	h := newHarness(t, runCfg(transcribe.Groq, ""), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	if st.Error != "Groq error (status 503): overloaded" {
		t.Errorf("error message = %q", st.Error)
	}
	if groq.callCount() != 1 {
		t.Errorf("primary attempts = %d, want 1 (no same-provider retry)", groq.callCount())
	}
	ev := h.events.last(t)
	if ev.Outcome != "failed" || ev.Provider != "groq" || ev.FallbackUsed || ev.Reason != "api_error_503" {
		t.Errorf("run event = %+v", ev)
	}
}

func TestRun_FallbackEqualsPrimaryNotAttempted(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, err: &transcribe.ProviderError{
		Provider: transcribe.Groq,
		Kind:     transcribe.KindVendor,
		Status:   500,
	}}
	h := newHarness(t, runCfg(transcribe.Groq, transcribe.Groq), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	if groq.callCount() != 1 {
		t.Errorf("provider attempted %d times, want 1", groq.callCount())
	}
}

func TestRun_NoAudio(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, resp: &transcribe.Response{Text: "never"}}
	h := newHarness(t, runCfg(transcribe.Groq, transcribe.Deepgram), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})
	h.rec.data = nil

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateFailed || st.Error != "no audio" {
		t.Fatalf("status = %+v, want Failed(no audio)", st)
	}
	if groq.callCount() != 0 {
		t.Error("provider called despite missing audio")
	}
	if n := h.rec.deleteCount(); n != 1 {
		t.Errorf("buffer deletes = %d, want exactly 1", n)
	}
}

func TestRun_WhitespaceTextRejected(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, resp: &transcribe.Response{Text: "   \n\t "}}
	h := newHarness(t, runCfg(transcribe.Groq, ""), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateFailed || st.Error != "empty result" {
		t.Fatalf("status = %+v, want Failed(empty result)", st)
	}
	if h.sink.callCount() != 0 {
		t.Error("whitespace-only text was delivered")
	}
}

func TestRun_FallbackFailureCleansUpOnce(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, err: &transcribe.ProviderError{
		Provider: transcribe.Groq, Kind: transcribe.KindTransport, Message: "Groq request failed: dial tcp: refused",
	}}
	deepgram := &scriptedProvider{id: transcribe.Deepgram, err: &transcribe.ProviderError{
		Provider: transcribe.Deepgram, Kind: transcribe.KindVendor, Status: 500, Message: "Deepgram error (status 500): boom",
	}}
	h := newHarness(t, runCfg(transcribe.Groq, transcribe.Deepgram), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq:     groq,
		transcribe.Deepgram: deepgram,
	})

	h.record(t)
	st := h.waitTerminal(t)

	if st.State != StateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	// Final message comes from the fallback's failure.
	if st.Error != "Deepgram error (status 500): boom" {
		t.Errorf("error message = %q", st.Error)
	}
	if n := h.rec.deleteCount(); n != 1 {
		t.Errorf("buffer deletes = %d, want exactly 1", n)
	}
	if groq.callCount() != 1 || deepgram.callCount() != 1 {
		t.Errorf("attempts groq=%d deepgram=%d, want one each", groq.callCount(), deepgram.callCount())
	}
	// The event names the provider that failed last and records that the
	// fallback hop was taken; the reason stays the primary's classification.
	ev := h.events.last(t)
	if ev.Outcome != "failed" || ev.Provider != "deepgram" || !ev.FallbackUsed || ev.Reason != "network_error" {
		t.Errorf("run event = %+v, want failed deepgram with fallback_used and reason network_error", ev)
	}
}

func TestStartRecording_DeviceFailure(t *testing.T) {
	h := newHarness(t, runCfg(transcribe.Groq, ""), nil)
	h.rec.startErr = fmt.Errorf("no input device")

	err := h.orch.StartRecording()
	if err == nil {
		t.Fatal("expected device error")
	}
	st := h.orch.Status()
	if st.State != StateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	// No audio exists yet, so no fallback logic and no buffer cleanup run.
	if n := h.rec.deleteCount(); n != 0 {
		t.Errorf("buffer deletes = %d, want 0 before any capture", n)
	}
}

func TestStopRecording_NoopWhenIdle(t *testing.T) {
	h := newHarness(t, runCfg(transcribe.Groq, ""), nil)
	h.orch.StopRecording()
	if st := h.orch.Status(); st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if h.rec.stops != 0 {
		t.Error("recorder stopped without an active session")
	}
}

func TestCancelRecording(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, resp: &transcribe.Response{Text: "never"}}
	h := newHarness(t, runCfg(transcribe.Groq, ""), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})

	if err := h.orch.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.orch.CancelRecording()

	if st := h.orch.Status(); st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if n := h.rec.deleteCount(); n != 1 {
		t.Errorf("buffer deletes = %d, want exactly 1", n)
	}
	if groq.callCount() != 0 {
		t.Error("cancelled recording was transcribed")
	}

	// Cancel again is a no-op: the delete count must not move.
	h.orch.CancelRecording()
	if n := h.rec.deleteCount(); n != 1 {
		t.Errorf("buffer deletes after double cancel = %d, want 1", n)
	}
}

func TestStartRecording_RejectedWhileProcessing(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, delay: 200 * time.Millisecond, resp: &transcribe.Response{Text: "ok"}}
	h := newHarness(t, runCfg(transcribe.Groq, ""), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})

	h.record(t)
	if err := h.orch.StartRecording(); err == nil {
		t.Error("StartRecording accepted while a run is processing")
	}
	h.waitTerminal(t)
}

func TestAutoReset(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, resp: &transcribe.Response{Text: "ok"}}
	h := newHarness(t, runCfg(transcribe.Groq, ""), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})
	h.orch.opts.ResetDelay = 30 * time.Millisecond

	h.record(t)
	if st := h.waitTerminal(t); st.State != StateDelivered {
		t.Fatalf("state = %s, want delivered", st.State)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-h.statuses:
			if st.State == StateIdle {
				return
			}
		case <-deadline:
			t.Fatalf("machine never auto-reset to idle, current: %+v", h.orch.Status())
		}
	}
}

func TestReset_OnDemand(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, resp: &transcribe.Response{Text: "ok"}}
	h := newHarness(t, runCfg(transcribe.Groq, ""), map[transcribe.ID]transcribe.Provider{
		transcribe.Groq: groq,
	})

	h.record(t)
	h.waitTerminal(t)
	h.orch.Reset()
	if st := h.orch.Status(); st.State != StateIdle {
		t.Errorf("state after Reset = %s, want idle", st.State)
	}

	// Reset outside a terminal state is a no-op.
	h.orch.Reset()
	if st := h.orch.Status(); st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
}

func TestRun_LiveConfigSnapshot(t *testing.T) {
	groq := &scriptedProvider{id: transcribe.Groq, resp: &transcribe.Response{Text: "from groq"}}
	sarvam := &scriptedProvider{id: transcribe.Sarvam, resp: &transcribe.Response{Text: "from sarvam"}}

	var mu sync.Mutex
	primary := transcribe.Groq
	h := &harness{
		rec:      &fakeRecorder{data: []byte("RIFFfake")},
		sink:     &fakeSink{},
		events:   &fakeEvents{},
		statuses: make(chan Status, 32),
	}
	h.orch = New(Options{
		Recorder: h.rec,
		Config: ConfigFunc(func() RunConfig {
			mu.Lock()
			defer mu.Unlock()
			return runCfg(primary, "")
		}),
		Providers: func(id transcribe.ID) (transcribe.Provider, error) {
			if id == transcribe.Groq {
				return groq, nil
			}
			return sarvam, nil
		},
		Sink:     h.sink,
		Events:   h.events,
		OnChange: func(st Status) { h.statuses <- st },
		Log:      zerolog.Nop(),
	})
	t.Cleanup(h.orch.Close)

	h.record(t)
	if st := h.waitTerminal(t); st.Provider != transcribe.Groq {
		t.Fatalf("first run used %s, want groq", st.Provider)
	}
	h.rec.waitDeleted(t, 1)
	h.orch.Reset()

	// A settings change applies to the very next run, no restart.
	mu.Lock()
	primary = transcribe.Sarvam
	mu.Unlock()
	h.rec.setData([]byte("RIFFfake"))

	h.record(t)
	if st := h.waitTerminal(t); st.Provider != transcribe.Sarvam {
		t.Fatalf("second run used %s, want sarvam", st.Provider)
	}
}
