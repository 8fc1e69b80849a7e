// Package google implements the Recognizer interface with Google Cloud
// Speech-to-Text (v1, synchronous Recognize).
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/nadzzz/solace/internal/audio"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/stt"
)

// speechClient is the subset of *speech.Client used here.
type speechClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Recognizer transcribes audio with Google Cloud Speech.
type Recognizer struct {
	client       speechClient
	languageCode string
	model        string
}

// New dials the Speech API. Without a credentials file the client relies on
// Application Default Credentials.
func New(ctx context.Context, cfg config.GoogleSTTConfig) (*Recognizer, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	return newRecognizer(client, cfg), nil
}

func newRecognizer(client speechClient, cfg config.GoogleSTTConfig) *Recognizer {
	lang := cfg.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	return &Recognizer{client: client, languageCode: lang, model: cfg.Model}
}

// Name returns the backend identifier.
func (r *Recognizer) Name() string { return "google" }

// Recognize sends one utterance to the Speech API and returns the best
// transcript across all result segments.
func (r *Recognizer) Recognize(ctx context.Context, data []byte, contentType string) (string, error) {
	cfg, content, err := recognitionConfig(data, contentType)
	if err != nil {
		return "", err
	}
	cfg.LanguageCode = r.languageCode
	cfg.Model = r.model

	resp, err := r.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: content}},
	})
	if err != nil {
		return "", &stt.RequestError{Backend: r.Name(), Err: err}
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	slog.Debug("google transcription complete", "segments", len(parts))
	if len(parts) == 0 {
		return "", stt.ErrNoSpeech
	}
	return strings.Join(parts, " "), nil
}

// Close releases the gRPC connection.
func (r *Recognizer) Close() error {
	return r.client.Close()
}

// recognitionConfig maps the audio container to a RecognitionConfig. WAV is
// unwrapped and sent as LINEAR16 at its own sample rate; Opus containers are
// passed through.
func recognitionConfig(data []byte, contentType string) (*speechpb.RecognitionConfig, []byte, error) {
	switch stt.ExtFromContentType(contentType) {
	case ".wav":
		pcm, f, err := audio.DecodeWAV(data)
		if err != nil {
			if errors.Is(err, audio.ErrNotWAV) && !strings.Contains(contentType, "wav") {
				break
			}
			return nil, nil, fmt.Errorf("preparing audio: %w", err)
		}
		if f.Width != 2 {
			return nil, nil, fmt.Errorf("preparing audio: unsupported sample width %d", f.Width)
		}
		return &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(f.SampleRate),
			AudioChannelCount: int32(f.Channels),
		}, pcm, nil
	case ".webm":
		return &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_WEBM_OPUS,
			SampleRateHertz: 48000,
		}, data, nil
	case ".ogg":
		return &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz: 48000,
		}, data, nil
	case ".flac":
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_FLAC}, data, nil
	}
	return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_ENCODING_UNSPECIFIED}, data, nil
}
