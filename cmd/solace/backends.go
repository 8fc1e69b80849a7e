package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/completion/anthropic"
	"github.com/nadzzz/solace/internal/completion/gemini"
	"github.com/nadzzz/solace/internal/completion/ollama"
	"github.com/nadzzz/solace/internal/completion/openai"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/persona"
	"github.com/nadzzz/solace/internal/session"
	"github.com/nadzzz/solace/internal/stt"
	"github.com/nadzzz/solace/internal/stt/google"
	"github.com/nadzzz/solace/internal/stt/whisper"
	"github.com/nadzzz/solace/internal/tts"
	"github.com/nadzzz/solace/internal/tts/piper"
)

// defaultModels are used when chat.model is empty.
var defaultModels = map[string]string{
	"ollama":    "llama3.2",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-0",
	"gemini":    "gemini-2.5-flash",
}

func newCompletionClient(ctx context.Context, cfg config.ChatConfig) (completion.Client, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Backend]
	}

	var client completion.Client
	switch cfg.Backend {
	case "ollama":
		client = ollama.New(cfg.Ollama, model)
	case "openai":
		client = openai.New(cfg.OpenAI, model)
	case "anthropic":
		client = anthropic.New(cfg.Anthropic, model)
	case "gemini":
		c, err := gemini.New(ctx, cfg.Gemini, model)
		if err != nil {
			return nil, err
		}
		client = c
	default:
		return nil, fmt.Errorf("unknown chat backend %q", cfg.Backend)
	}
	slog.Info("using chat backend", "backend", cfg.Backend, "model", model)
	return client, nil
}

func newRecognizer(ctx context.Context, cfg config.STTConfig) (stt.Recognizer, error) {
	switch cfg.Backend {
	case "whisper":
		slog.Info("using whisper recognizer", "endpoint", cfg.Whisper.Endpoint, "type", cfg.Whisper.Type)
		return whisper.New(cfg.Whisper), nil
	case "google":
		r, err := google.New(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		slog.Info("using google recognizer", "language", cfg.Google.LanguageCode)
		return r, nil
	default:
		return nil, fmt.Errorf("unknown stt backend %q", cfg.Backend)
	}
}

// newSynthesizer returns nil when speech output is disabled.
func newSynthesizer(cfg config.TTSConfig) tts.Synthesizer {
	if !cfg.Enabled {
		return nil
	}
	slog.Info("using piper synthesizer", "endpoint", cfg.Piper.Endpoint)
	return piper.New(cfg.Piper)
}

func synthesizeOpts(cfg config.TTSConfig) tts.SynthesizeOpts {
	return tts.SynthesizeOpts{Language: cfg.Language, Voice: cfg.Voice}
}

func sessionConfig(cfg *config.Config) (session.Config, error) {
	p, err := persona.Load(cfg.Session.PersonaFile)
	if err != nil {
		return session.Config{}, err
	}
	policy, err := session.ParseFailurePolicy(cfg.Chat.OnFailure)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Persona:     p,
		Temperature: cfg.Chat.Temperature,
		ExitPhrases: cfg.Session.ExitPhrases,
		OnFailure:   policy,
	}, nil
}
