package listen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/solace/internal/audio"
	"github.com/nadzzz/solace/internal/stt"
)

// MicOptions tunes phrase capture. Zero fields take the defaults below.
type MicOptions struct {
	Format         audio.Format
	Calibration    time.Duration // default 200ms
	ListenTimeout  time.Duration // default 10s
	PhraseLimit    time.Duration // default 8s
	PauseThreshold time.Duration // default 800ms
	PreRoll        time.Duration // default 500ms
}

func (o MicOptions) withDefaults() MicOptions {
	if o.Format.SampleRate == 0 {
		o.Format = audio.Speech
	}
	if o.Calibration <= 0 {
		o.Calibration = 200 * time.Millisecond
	}
	if o.ListenTimeout <= 0 {
		o.ListenTimeout = 10 * time.Second
	}
	if o.PhraseLimit <= 0 {
		o.PhraseLimit = 8 * time.Second
	}
	if o.PauseThreshold <= 0 {
		o.PauseThreshold = 800 * time.Millisecond
	}
	if o.PreRoll <= 0 {
		o.PreRoll = 500 * time.Millisecond
	}
	return o
}

// Mic listens on a microphone and transcribes the phrase with a Recognizer.
type Mic struct {
	source     audio.Source
	recognizer stt.Recognizer
	notifier   Notifier
	opts       MicOptions
}

// NewMic creates a microphone listener. A nil notifier is replaced by NopNotifier.
func NewMic(source audio.Source, recognizer stt.Recognizer, notifier Notifier, opts MicOptions) *Mic {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Mic{
		source:     source,
		recognizer: recognizer,
		notifier:   notifier,
		opts:       opts.withDefaults(),
	}
}

// Listen captures one phrase and returns its transcript. The microphone is
// held only while capturing and is released before recognition starts.
// Failures are returned as *Error; no retries are made.
func (m *Mic) Listen(ctx context.Context) (string, error) {
	pcm, err := m.capture(ctx)
	if err != nil {
		return "", Classify(err)
	}

	m.notifier.Processing()
	start := time.Now()
	text, err := m.recognizer.Recognize(ctx, audio.EncodeWAV(pcm, m.opts.Format), "audio/wav")
	if err != nil {
		return "", Classify(err)
	}
	slog.Debug("phrase recognized",
		"backend", m.recognizer.Name(),
		"audio", m.opts.Format.Duration(len(pcm)),
		"latency", time.Since(start),
	)

	m.notifier.Heard(text)
	return text, nil
}

func (m *Mic) capture(ctx context.Context) ([]byte, error) {
	stream, err := m.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening microphone: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Warn("releasing microphone", "error", err)
		}
	}()

	threshold, err := audio.Calibrate(stream, m.opts.Format, m.opts.Calibration)
	if err != nil {
		return nil, fmt.Errorf("calibrating microphone: %w", err)
	}
	slog.Debug("microphone calibrated", "threshold", threshold)

	m.notifier.Listening()
	return audio.CapturePhrase(ctx, stream, m.opts.Format, audio.CaptureOptions{
		Threshold:      threshold,
		ListenTimeout:  m.opts.ListenTimeout,
		PhraseLimit:    m.opts.PhraseLimit,
		PauseThreshold: m.opts.PauseThreshold,
		PreRoll:        m.opts.PreRoll,
	})
}
