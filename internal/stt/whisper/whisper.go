// Package whisper implements the Recognizer interface against a
// Whisper-compatible HTTP endpoint.
//
// Two flavours are supported:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper,
//     OpenAI itself) at /v1/audio/transcriptions
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/stt"
)

// Recognizer transcribes audio through a Whisper-compatible endpoint.
type Recognizer struct {
	endpoint  string
	flavour   string // "openai" or "asr"
	model     string
	apiKey    string
	language  string
	vadFilter bool
	client    *http.Client
}

// New creates a new whisper recognizer from config.
func New(cfg config.WhisperConfig) *Recognizer {
	flavour := cfg.Type
	if flavour == "" {
		flavour = "openai"
	}
	return &Recognizer{
		endpoint:  cfg.Endpoint,
		flavour:   flavour,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		language:  cfg.Language,
		vadFilter: cfg.VADFilter,
		client:    &http.Client{},
	}
}

// Name returns the backend identifier.
func (r *Recognizer) Name() string { return "whisper" }

// Recognize sends audio to the endpoint and returns the transcript.
// A blank transcript is reported as stt.ErrNoSpeech.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte, contentType string) (string, error) {
	var (
		req *http.Request
		err error
	)
	switch r.flavour {
	case "asr":
		req, err = r.asrRequest(ctx, audio, contentType)
	default:
		req, err = r.openAIRequest(ctx, audio, contentType)
	}
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &stt.RequestError{Backend: r.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &stt.RequestError{
			Backend:    r.Name(),
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	// Both flavours answer {"text": "...", "language": "..."} for verbose_json.
	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &stt.RequestError{Backend: r.Name(), Err: fmt.Errorf("decoding transcription: %w", err)}
	}

	text := strings.TrimSpace(result.Text)
	slog.Debug("whisper transcription complete", "flavour", r.flavour, "text_length", len(text), "language", result.Language)
	if text == "" {
		return "", stt.ErrNoSpeech
	}
	return text, nil
}

// asrRequest builds a whisper-asr-webservice request.
// API: POST /asr?task=transcribe&language=en&output=json&vad_filter=true
// Body: multipart/form-data with field "audio_file"
func (r *Recognizer) asrRequest(ctx context.Context, audio []byte, contentType string) (*http.Request, error) {
	body, formType, err := multipartBody("audio_file", audio, contentType, nil)
	if err != nil {
		return nil, err
	}

	q := make(url.Values)
	q.Set("task", "transcribe")
	q.Set("output", "json")
	q.Set("encode", "true")
	if r.language != "" {
		q.Set("language", r.language)
	}
	if r.vadFilter {
		q.Set("vad_filter", "true")
	}

	reqURL := r.endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", formType)

	slog.Debug("whisper-asr request", "url", reqURL)
	return req, nil
}

// openAIRequest builds an OpenAI-compatible transcription request.
func (r *Recognizer) openAIRequest(ctx context.Context, audio []byte, contentType string) (*http.Request, error) {
	fields := map[string]string{"response_format": "verbose_json"}
	if r.model != "" {
		fields["model"] = r.model
	}
	if r.language != "" {
		fields["language"] = r.language
	}

	body, formType, err := multipartBody("file", audio, contentType, fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	return req, nil
}

// Close is a no-op for the HTTP recognizer.
func (r *Recognizer) Close() error { return nil }

func multipartBody(field string, audio []byte, contentType string, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, "audio"+stt.ExtFromContentType(contentType))
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
