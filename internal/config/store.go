package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/transcribe"
)

// Store holds the live configuration. Readers take a snapshot per use;
// Watch re-parses the .env file when it changes on disk, so settings edits
// apply to the very next dictation run without a restart.
type Store struct {
	envFile string
	log     zerolog.Logger

	mu  sync.RWMutex
	cfg *Config
}

// NewStore loads the initial configuration from envFile (".env" if empty).
func NewStore(envFile string, log zerolog.Logger) (*Store, error) {
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := Load(envFile)
	if err != nil {
		return nil, err
	}
	return &Store{envFile: envFile, log: log, cfg: cfg}, nil
}

// Current returns a copy of the live configuration.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// Reload re-parses the env file and environment. Invalid configuration is
// rejected and the previous snapshot stays live.
func (s *Store) Reload() error {
	cfg, err := Load(s.envFile)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Info().Str("file", s.envFile).Msg("configuration reloaded")
	return nil
}

// Credential implements transcribe.CredentialStore against the live config.
func (s *Store) Credential(id transcribe.ID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.APIKey(id)
}

// Watch reloads on writes to the env file until ctx is cancelled. Editors
// replace files rather than writing in place, so the watch is on the parent
// directory and events are debounced.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.envFile)
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var debounce *time.Timer
		target := filepath.Clean(s.envFile)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					if err := s.Reload(); err != nil {
						s.log.Warn().Err(err).Msg("config reload failed, keeping previous settings")
					}
				})

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Error().Err(err).Msg("config watcher error")
			}
		}
	}()

	s.log.Debug().Str("file", s.envFile).Msg("watching configuration file")
	return nil
}
