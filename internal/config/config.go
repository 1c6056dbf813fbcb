package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/openwhisper/ow-engine/internal/transcribe"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:"127.0.0.1:8090"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AuthToken    string        `env:"AUTH_TOKEN"`

	// Optional: history persistence is skipped when unset.
	DatabaseURL string `env:"DATABASE_URL"`

	// Optional: run events are skipped when no broker is configured.
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"ow-engine"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"ow-engine/runs"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	PrimaryProvider  string        `env:"STT_PRIMARY_PROVIDER" envDefault:"groq"`
	FallbackProvider string        `env:"STT_FALLBACK_PROVIDER"` // empty = disabled
	AttemptTimeout   time.Duration `env:"STT_ATTEMPT_TIMEOUT" envDefault:"8s"`
	Language         string        `env:"STT_LANGUAGE"`

	GroqAPIKey       string `env:"GROQ_API_KEY"`
	GroqModel        string `env:"GROQ_MODEL" envDefault:"whisper-large-v3"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel  string `env:"ELEVENLABS_STT_MODEL" envDefault:"scribe_v1"`
	DeepgramAPIKey   string `env:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`
	SarvamAPIKey     string `env:"SARVAM_API_KEY"`
	SarvamModel      string `env:"SARVAM_MODEL" envDefault:"saarika:v2"`

	ClipboardCmd string        `env:"CLIPBOARD_CMD" envDefault:"pbcopy"`
	ResetDelay   time.Duration `env:"RESET_DELAY" envDefault:"2s"`

	TTSProvider       string `env:"TTS_PROVIDER" envDefault:"elevenlabs"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
	OpenAITTSModel    string `env:"OPENAI_TTS_MODEL" envDefault:"tts-1"`
	OpenAITTSVoice    string `env:"OPENAI_TTS_VOICE" envDefault:"alloy"`
	ElevenLabsVoiceID string `env:"ELEVENLABS_VOICE_ID"`

	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Prefix       string `env:"S3_PREFIX" envDefault:"recordings"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
}

// Load reads configuration from the .env file (silent if missing) and
// environment variables, then validates it.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		// Overload, not Load: a reload must pick up changed values, not
		// keep the first ones the process saw.
		_ = godotenv.Overload(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !transcribe.ID(c.PrimaryProvider).Valid() {
		return fmt.Errorf("STT_PRIMARY_PROVIDER: unknown provider %q", c.PrimaryProvider)
	}
	if c.FallbackProvider != "" && !transcribe.ID(c.FallbackProvider).Valid() {
		return fmt.Errorf("STT_FALLBACK_PROVIDER: unknown provider %q", c.FallbackProvider)
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = transcribe.DefaultTimeout
	}
	return nil
}

// Primary returns the validated primary provider identity.
func (c *Config) Primary() transcribe.ID { return transcribe.ID(c.PrimaryProvider) }

// Fallback returns the fallback provider identity, empty when disabled.
func (c *Config) Fallback() transcribe.ID { return transcribe.ID(c.FallbackProvider) }

// ProviderOpts builds the per-provider model/language passthrough.
func (c *Config) ProviderOpts() map[transcribe.ID]transcribe.Opts {
	return map[transcribe.ID]transcribe.Opts{
		transcribe.Groq:       {Model: c.GroqModel, Language: c.Language},
		transcribe.ElevenLabs: {Model: c.ElevenLabsModel, Language: c.Language},
		transcribe.Deepgram:   {Model: c.DeepgramModel, Language: c.Language},
		transcribe.Sarvam:     {Model: c.SarvamModel, Language: c.Language},
	}
}

// APIKey returns the credential for a provider, empty when unset.
func (c *Config) APIKey(id transcribe.ID) string {
	switch id {
	case transcribe.Groq:
		return c.GroqAPIKey
	case transcribe.ElevenLabs:
		return c.ElevenLabsAPIKey
	case transcribe.Deepgram:
		return c.DeepgramAPIKey
	case transcribe.Sarvam:
		return c.SarvamAPIKey
	}
	return ""
}
