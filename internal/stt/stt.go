// Package stt defines the interface for speech-to-text recognition.
//
// A recognizer takes one captured utterance and returns its transcript.
// solace ships with two backends: a Whisper-compatible HTTP endpoint
// (whisper.cpp server, faster-whisper, whisper-asr-webservice, OpenAI) and
// Google Cloud Speech.
package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Recognizer converts captured audio to text.
type Recognizer interface {
	// Name returns the backend identifier (e.g., "whisper", "google").
	Name() string

	// Recognize transcribes audio. contentType is the MIME type of the
	// audio (e.g., "audio/wav", "audio/webm").
	Recognize(ctx context.Context, audio []byte, contentType string) (string, error)

	// Close releases any resources held by the recognizer.
	Close() error
}

// ErrNoSpeech is returned when the service could not match any transcript
// to the audio.
var ErrNoSpeech = errors.New("speech was unintelligible")

// RequestError reports that the recognition service could not be reached
// or refused the request.
type RequestError struct {
	Backend    string
	StatusCode int // HTTP status, 0 for transport or gRPC errors
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s recognition request failed (status %d): %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s recognition request failed: %v", e.Backend, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ExtFromContentType maps an audio MIME type to a file extension for
// multipart uploads.
func ExtFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		return ".wav"
	}
}
