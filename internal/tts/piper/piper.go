// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. Every request
// opens its own connection.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/solace/internal/audio"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/tts"
)

const (
	dialTimeout    = 10 * time.Second
	requestTimeout = 30 * time.Second
)

// defaultVoices maps ISO-639-1 language codes to Piper voice model names.
var defaultVoices = map[string]string{
	"en": "en_US-lessac-medium",
	"fr": "fr_FR-siwis-medium",
	"es": "es_ES-mls_10246-low",
	"de": "de_DE-thorsten-medium",
	"it": "it_IT-riccardo-x_low",
	"pt": "pt_BR-faber-medium",
	"nl": "nl_NL-mls-medium",
	"pl": "pl_PL-darkman-medium",
	"ru": "ru_RU-ruslan-medium",
	"ja": "ja_JP-amitaro-medium",
	"ko": "ko_KR-kss-x_low",
	"zh": "zh_CN-huayan-medium",
}

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint  string            // default host:port of the Piper Wyoming server
	endpoints map[string]string // language -> host:port for per-language Piper instances
	voices    map[string]string // language -> voice name overrides
	speaker   string
}

// New creates a new Piper synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	voices := maps.Clone(defaultVoices)
	maps.Copy(voices, cfg.Voices)

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[lang] = cleanEndpoint(ep)
	}

	return &Synthesizer{
		endpoint:  cleanEndpoint(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		speaker:   cfg.Speaker,
	}
}

func cleanEndpoint(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	ep = strings.TrimPrefix(ep, "http://")
	return strings.TrimSuffix(ep, "/")
}

// Name returns the engine identifier.
func (s *Synthesizer) Name() string { return "piper" }

// Describe asks the default endpoint for its voices. An error means the
// engine cannot be used.
func (s *Synthesizer) Describe(ctx context.Context) ([]tts.Voice, error) {
	if s.endpoint == "" {
		return nil, errors.New("no piper endpoint configured")
	}

	conn, r, err := dial(ctx, s.endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeEvent(conn, wyomingEvent{Type: "describe"}, nil); err != nil {
		return nil, fmt.Errorf("sending describe event: %w", err)
	}

	for {
		evt, _, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}
		if evt.Type != "info" {
			slog.Debug("piper unexpected event", "type", evt.Type)
			continue
		}
		voices := parseVoices(evt.Data)
		slog.Debug("piper describe", "endpoint", s.endpoint, "voices", len(voices))
		return voices, nil
	}
}

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text for synthesis")
	}

	// Select voice based on language or explicit override.
	voice := opts.Voice
	if voice == "" {
		voice = s.voices[opts.Language]
	}
	if voice == "" {
		voice = s.voices["en"] // fallback to English
	}

	// Select endpoint: per-language endpoint if available, else fallback.
	endpoint := s.endpoints[opts.Language]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured for language %q", opts.Language)
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "language", opts.Language, "endpoint", endpoint)

	conn, r, err := dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	voiceData := map[string]any{"name": voice}
	if s.speaker != "" {
		voiceData["speaker"] = s.speaker
	}
	synth := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{"text": text, "voice": voiceData},
	}
	if err := writeEvent(conn, synth, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	// Read response events: audio-start → audio-chunk* → audio-stop
	var pcm bytes.Buffer
	f := audio.Format{SampleRate: 22050, Channels: 1, Width: 2}

	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			f = formatFrom(evt.Data, f)
			slog.Debug("piper audio-start", "rate", f.SampleRate, "channels", f.Channels, "width", f.Width)

		case "audio-chunk":
			pcm.Write(payload)

		case "audio-stop":
			slog.Debug("piper audio-stop", "pcm_bytes", pcm.Len())
			return &tts.Result{
				Audio:       audio.EncodeWAV(pcm.Bytes(), f),
				ContentType: "audio/wav",
				SampleRate:  f.SampleRate,
				Channels:    f.Channels,
			}, nil

		case "error":
			msg := "unknown error"
			if text, ok := evt.Data["text"].(string); ok {
				msg = text
			}
			return nil, fmt.Errorf("piper error: %s", msg)

		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }

func dial(ctx context.Context, endpoint string) (net.Conn, *bufio.Reader, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to piper: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(requestTimeout))
	}
	return conn, bufio.NewReader(conn), nil
}

func formatFrom(data map[string]any, f audio.Format) audio.Format {
	if rate, ok := data["rate"].(float64); ok {
		f.SampleRate = int(rate)
	}
	if ch, ok := data["channels"].(float64); ok {
		f.Channels = int(ch)
	}
	if w, ok := data["width"].(float64); ok {
		f.Width = int(w)
	}
	return f
}

// parseVoices extracts voices from an info event:
// {"tts": [{"name": "piper", "voices": [{"name": "...", "languages": ["en_US"]}]}]}
func parseVoices(data map[string]any) []tts.Voice {
	var voices []tts.Voice
	programs, _ := data["tts"].([]any)
	for _, p := range programs {
		program, _ := p.(map[string]any)
		list, _ := program["voices"].([]any)
		for _, v := range list {
			entry, _ := v.(map[string]any)
			name, _ := entry["name"].(string)
			if name == "" {
				continue
			}
			voice := tts.Voice{Name: name}
			langs, _ := entry["languages"].([]any)
			for _, l := range langs {
				if s, ok := l.(string); ok {
					voice.Languages = append(voice.Languages, s)
				}
			}
			voices = append(voices, voice)
		}
	}
	return voices
}
