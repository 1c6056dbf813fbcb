package recorder

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/dictation"
)

// soxAvailable caches whether sox is in PATH (checked once).
var soxAvailable *bool

// CheckSox checks if sox is available in PATH.
func CheckSox() bool {
	if soxAvailable != nil {
		return *soxAvailable
	}
	_, err := exec.LookPath("sox")
	avail := err == nil
	soxAvailable = &avail
	return avail
}

// SoxRecorder captures microphone audio to a temporary WAV file via sox.
// 16kHz mono, the encoding every provider adapter accepts. One session at a
// time; the orchestrator owns the buffer's deletion.
type SoxRecorder struct {
	log zerolog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	path string
}

var _ dictation.Recorder = (*SoxRecorder)(nil)

// NewSox creates a sox-backed recorder.
func NewSox(log zerolog.Logger) *SoxRecorder {
	return &SoxRecorder{log: log.With().Str("component", "recorder").Logger()}
}

// Start opens the default input device and begins capturing. Fails when sox
// is missing or the device cannot be opened.
func (r *SoxRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("recording already in progress")
	}
	if !CheckSox() {
		return fmt.Errorf("sox not found in PATH")
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("ow-engine-rec-%d.wav", time.Now().UnixNano()))
	cmd := exec.Command("sox", "-q", "-d", "-r", "16000", "-c", "1", path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open recording device: %w", err)
	}

	r.cmd = cmd
	r.path = path
	r.log.Debug().Str("path", path).Msg("recording started")
	return nil
}

// Stop interrupts sox and waits for it to finalize the WAV header. A SIGINT
// lets sox flush; the file stays on disk until Delete.
func (r *SoxRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return
	}
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Signal(os.Interrupt)
	}
	_ = r.cmd.Wait()
	r.cmd = nil
	r.log.Debug().Str("path", r.path).Msg("recording stopped")
}

// Data returns the captured bytes, nil when nothing was recorded.
func (r *SoxRecorder) Data() []byte {
	r.mu.Lock()
	path := r.path
	r.mu.Unlock()

	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

// Delete removes the capture file. Safe to call when nothing was recorded.
func (r *SoxRecorder) Delete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" {
		return
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		r.log.Warn().Err(err).Str("path", r.path).Msg("failed to delete recording")
	}
	r.path = ""
}

// Recording reports whether a capture is in progress.
func (r *SoxRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}
