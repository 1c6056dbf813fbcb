package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/api"
	"github.com/openwhisper/ow-engine/internal/archive"
	"github.com/openwhisper/ow-engine/internal/config"
	"github.com/openwhisper/ow-engine/internal/deliver"
	"github.com/openwhisper/ow-engine/internal/dictation"
	"github.com/openwhisper/ow-engine/internal/events"
	"github.com/openwhisper/ow-engine/internal/history"
	"github.com/openwhisper/ow-engine/internal/metrics"
	"github.com/openwhisper/ow-engine/internal/recorder"
	"github.com/openwhisper/ow-engine/internal/speak"
	"github.com/openwhisper/ow-engine/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	envFile := flag.String("env", ".env", "path to the environment file")
	flag.Parse()

	early := zerolog.New(os.Stderr).With().Timestamp().Logger()

	store, err := config.NewStore(*envFile, early)
	if err != nil {
		early.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := store.Current()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("ow-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	// Config hot reload, best-effort
	if err := store.Watch(ctx); err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable, edits need a restart")
	}

	// History, optional
	var db *history.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "history").Logger()
		db, err = history.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to history database")
		}
		defer db.Close()
	}

	// Run events over MQTT, optional
	var pub *events.Publisher
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		pub, err = events.Connect(events.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer pub.Close()
	}

	// Audio archive, optional
	var arc *archive.Store
	if cfg.ArchiveEnabled {
		arcLog := log.With().Str("component", "archive").Logger()
		arc, err = archive.New(ctx, archive.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Log:       arcLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open audio archive")
		}
		defer arc.Close()
	}

	if !recorder.CheckSox() {
		log.Warn().Msg("sox not found in PATH, recording will fail until installed")
	}

	sink := deliver.New(cfg.ClipboardCmd, db, log.With().Str("component", "deliver").Logger())

	// Providers are built per attempt so credential reloads apply to the
	// next run. The HTTP client gets slack beyond the attempt timeout;
	// the attempt timer is the one that decides.
	providerFor := func(id transcribe.ID) (transcribe.Provider, error) {
		return transcribe.New(id, store, store.Current().AttemptTimeout+5*time.Second)
	}

	orch := dictation.New(dictation.Options{
		Recorder:  recorder.NewSox(log.With().Str("component", "recorder").Logger()),
		Providers: providerFor,
		Sink:      sink,
		Events:    nilIfEvents(pub),
		Archiver:  nilIfArchive(arc),
		Config: dictation.ConfigFunc(func() dictation.RunConfig {
			c := store.Current()
			return dictation.RunConfig{
				Primary:  c.Primary(),
				Fallback: c.Fallback(),
				Timeout:  c.AttemptTimeout,
				Opts:     c.ProviderOpts(),
			}
		}),
		ResetDelay: cfg.ResetDelay,
		Log:        log.With().Str("component", "dictation").Logger(),
	})
	defer orch.Close()

	// Speech synthesis, optional
	var speech speak.Provider
	if cfg.TTSProvider != "" {
		speech, err = speak.New(cfg.TTSProvider, speak.Options{
			ElevenLabsKey:     cfg.ElevenLabsAPIKey,
			ElevenLabsVoiceID: cfg.ElevenLabsVoiceID,
			OpenAIKey:         cfg.OpenAIAPIKey,
			OpenAIModel:       cfg.OpenAITTSModel,
			OpenAIVoice:       cfg.OpenAITTSVoice,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("invalid speech synthesis config")
		}
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.Options{
		Addr:         cfg.HTTPAddr,
		AuthToken:    cfg.AuthToken,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		Controller:   orch,
		History:      db,
		Events:       nilIfConnectivity(pub),
		Speech:       speech,
		ProviderState: func() map[string]bool {
			state := make(map[string]bool)
			for _, id := range transcribe.IDs() {
				state[string(id)] = store.Credential(id) != ""
			}
			return state
		},
		RecorderCheck: func() error {
			if !recorder.CheckSox() {
				return errors.New("sox not found in PATH")
			}
			return nil
		},
		Version:   version,
		StartTime: startTime,
		Log:       httpLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("ow-engine stopped")
}

// A nil *T stored in a non-nil interface still dispatches, so the
// optional collaborators are narrowed to untyped nil here.
func nilIfEvents(p *events.Publisher) dictation.Events {
	if p == nil {
		return nil
	}
	return p
}

func nilIfArchive(a *archive.Store) dictation.Archiver {
	if a == nil {
		return nil
	}
	return a
}

func nilIfConnectivity(p *events.Publisher) api.Connectivity {
	if p == nil {
		return nil
	}
	return p
}
