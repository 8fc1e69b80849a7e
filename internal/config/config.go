// Package config handles loading and validating the solace configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for solace.
type Config struct {
	Chat    ChatConfig    `mapstructure:"chat"`
	STT     STTConfig     `mapstructure:"stt"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Session SessionConfig `mapstructure:"session"`
	Web     WebConfig     `mapstructure:"web"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ChatConfig selects and configures the chat completion backend.
type ChatConfig struct {
	Backend     string  `mapstructure:"backend"` // ollama, openai, anthropic, gemini
	Model       string  `mapstructure:"model"`   // empty picks the backend default
	Temperature float64 `mapstructure:"temperature"`
	OnFailure   string  `mapstructure:"on_failure"` // substitute, omit, retry-once

	Ollama    OllamaConfig    `mapstructure:"ollama"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
}

// OllamaConfig holds the Ollama server settings. An endpoint ending in
// /chat/completions is treated as OpenAI-compatible.
type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// OpenAIConfig holds OpenAI API settings. BaseURL may point at any
// OpenAI-compatible server.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// STTConfig selects and configures the speech-to-text backend.
type STTConfig struct {
	Backend string          `mapstructure:"backend"` // whisper, google
	Whisper WhisperConfig   `mapstructure:"whisper"`
	Google  GoogleSTTConfig `mapstructure:"google"`
}

// WhisperConfig holds the settings of a self-hosted or hosted whisper server.
type WhisperConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Type      string `mapstructure:"type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	Language  string `mapstructure:"language"` // ISO-639-1, empty for auto-detection
	VADFilter bool   `mapstructure:"vad_filter"`
}

// GoogleSTTConfig holds Google Cloud Speech settings.
type GoogleSTTConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
	LanguageCode    string `mapstructure:"language_code"`
	Model           string `mapstructure:"model"`
}

// TTSConfig selects and configures the text-to-speech backend. When disabled,
// replies are printed only.
type TTSConfig struct {
	Enabled  bool        `mapstructure:"enabled"`
	Backend  string      `mapstructure:"backend"` // "piper"
	Language string      `mapstructure:"language"`
	Voice    string      `mapstructure:"voice"`
	Piper    PiperConfig `mapstructure:"piper"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. Endpoints takes precedence and Endpoint
// is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // host:port
	Endpoints map[string]string `mapstructure:"endpoints"` // language -> host:port
	Voices    map[string]string `mapstructure:"voices"`    // language -> voice model name
	Speaker   string            `mapstructure:"speaker"`
}

// AudioConfig configures the microphone and player commands and phrase capture.
type AudioConfig struct {
	CaptureCommand  []string      `mapstructure:"capture_command"`
	PlayerCommand   []string      `mapstructure:"player_command"`
	SampleRate      int           `mapstructure:"sample_rate"`
	Calibration     time.Duration `mapstructure:"calibration"`
	ListenTimeout   time.Duration `mapstructure:"listen_timeout"`
	PhraseTimeLimit time.Duration `mapstructure:"phrase_time_limit"`
	PauseThreshold  time.Duration `mapstructure:"pause_threshold"`
}

// SessionConfig holds conversation settings shared by both front-ends.
type SessionConfig struct {
	PersonaFile string   `mapstructure:"persona_file"`
	ExitPhrases []string `mapstructure:"exit_phrases"`
}

// WebConfig configures the web chat front-end.
type WebConfig struct {
	Port         int         `mapstructure:"port"`
	SpeakReplies bool        `mapstructure:"speak_replies"`
	Store        StoreConfig `mapstructure:"store"`
}

// StoreConfig selects where web conversations are kept.
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // memory, redis
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ServerConfig holds the health check server settings. A zero
// GRPCHealthPort disables the gRPC health service.
type ServerConfig struct {
	HealthPort     int `mapstructure:"health_port"`
	GRPCHealthPort int `mapstructure:"grpc_health_port"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text, pretty
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./solace.yaml, ./configs/solace.yaml, /etc/solace/solace.yaml.
//
// A .env file in the working directory is loaded into the environment first;
// variables already set win over it.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("solace")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/solace")
	}

	// Environment variables: SOLACE_CHAT_BACKEND, SOLACE_WEB_PORT, etc.
	v.SetEnvPrefix("SOLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Secrets may be written as "${OPENAI_API_KEY}" in the file.
	cfg.Chat.OpenAI.APIKey = resolveEnvRef(cfg.Chat.OpenAI.APIKey)
	cfg.Chat.Anthropic.APIKey = resolveEnvRef(cfg.Chat.Anthropic.APIKey)
	cfg.Chat.Gemini.APIKey = resolveEnvRef(cfg.Chat.Gemini.APIKey)
	cfg.STT.Whisper.APIKey = resolveEnvRef(cfg.STT.Whisper.APIKey)
	cfg.STT.Google.CredentialsFile = resolveEnvRef(cfg.STT.Google.CredentialsFile)
	cfg.Web.Store.Redis.Password = resolveEnvRef(cfg.Web.Store.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chat.backend", "ollama")
	v.SetDefault("chat.model", "")
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.on_failure", "substitute")
	v.SetDefault("chat.ollama.endpoint", "http://localhost:11434")
	v.SetDefault("chat.anthropic.max_tokens", 1024)
	v.SetDefault("stt.backend", "whisper")
	v.SetDefault("stt.whisper.endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("stt.whisper.type", "openai")
	v.SetDefault("stt.whisper.model", "whisper-1")
	v.SetDefault("stt.google.language_code", "en-US")
	v.SetDefault("tts.enabled", false)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.language", "en")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("audio.capture_command", []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "16000", "-c", "1"})
	v.SetDefault("audio.player_command", []string{"aplay", "-q"})
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.calibration", 200*time.Millisecond)
	v.SetDefault("audio.listen_timeout", 10*time.Second)
	v.SetDefault("audio.phrase_time_limit", 8*time.Second)
	v.SetDefault("audio.pause_threshold", 800*time.Millisecond)
	v.SetDefault("session.exit_phrases", []string{"exit", "quit", "bye", "goodbye"})
	v.SetDefault("web.port", 8080)
	v.SetDefault("web.speak_replies", false)
	v.SetDefault("web.store.backend", "memory")
	v.SetDefault("web.store.redis.addr", "localhost:6379")
	v.SetDefault("web.store.redis.key_prefix", "solace:conversation:")
	v.SetDefault("web.store.redis.ttl", 24*time.Hour)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.grpc_health_port", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "")
}

// Validate checks the backend selectors.
func (c *Config) Validate() error {
	switch c.Chat.Backend {
	case "ollama", "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown chat backend %q", c.Chat.Backend)
	}
	switch c.STT.Backend {
	case "whisper", "google":
	default:
		return fmt.Errorf("unknown stt backend %q", c.STT.Backend)
	}
	if c.TTS.Enabled && c.TTS.Backend != "piper" {
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	switch c.Web.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown web store backend %q", c.Web.Store.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config. An empty
// format falls back to fallbackFormat, so each command can pick its own.
func SetupLogging(cfg LoggingConfig, fallbackFormat string) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, cfg, fallbackFormat)))
}

// NewHandler builds the slog handler for cfg writing to w.
func NewHandler(w io.Writer, cfg LoggingConfig, fallbackFormat string) slog.Handler {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = fallbackFormat
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "pretty":
		logger := log.NewWithOptions(w, log.Options{
			Level:           log.Level(level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		})
		return logger
	default:
		return slog.NewJSONHandler(w, opts)
	}
}
