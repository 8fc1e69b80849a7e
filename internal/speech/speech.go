// Package speech delivers assistant replies to the user: printed, and spoken
// aloud when a synthesizer and a player are available.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/solace/internal/tts"
)

// Speaker delivers one utterance. Speak blocks until delivery is finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Printer shows an utterance on screen.
type Printer interface {
	PrintReply(text string)
}

// Player plays a WAV file.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// checker is implemented by players that can tell up front whether they work.
type checker interface {
	Available() error
}

// Text only prints.
type Text struct {
	Printer Printer
}

// Speak prints text.
func (t Text) Speak(_ context.Context, text string) error {
	if t.Printer != nil {
		t.Printer.PrintReply(text)
	}
	return nil
}

// Voice prints text, synthesizes it and plays it, blocking until playback ends.
type Voice struct {
	synth   tts.Synthesizer
	player  Player
	printer Printer
	opts    tts.SynthesizeOpts
}

// NewVoice creates a Voice without probing the engine. printer may be nil.
func NewVoice(synth tts.Synthesizer, player Player, printer Printer, opts tts.SynthesizeOpts) *Voice {
	return &Voice{synth: synth, player: player, printer: printer, opts: opts}
}

// Speak echoes text, then speaks it. The echo happens even when synthesis fails.
func (v *Voice) Speak(ctx context.Context, text string) error {
	if v.printer != nil {
		v.printer.PrintReply(text)
	}

	start := time.Now()
	res, err := v.synth.Synthesize(ctx, text, v.opts)
	if err != nil {
		return fmt.Errorf("synthesizing speech: %w", err)
	}
	slog.Debug("speech synthesized", "engine", v.synth.Name(), "bytes", len(res.Audio), "latency", time.Since(start))

	if err := v.player.Play(ctx, res.Audio); err != nil {
		return fmt.Errorf("playing speech: %w", err)
	}
	return nil
}

// New returns a Voice when the engine answers a describe request and the player
// is usable, or a Text speaker otherwise. The check runs once; a failed check
// is logged once as a warning and never retried.
func New(ctx context.Context, synth tts.Synthesizer, player Player, printer Printer, opts tts.SynthesizeOpts) Speaker {
	if synth == nil || player == nil {
		return Text{Printer: printer}
	}

	if c, ok := player.(checker); ok {
		if err := c.Available(); err != nil {
			slog.Warn("audio playback unavailable, replies will be text only", "error", err)
			return Text{Printer: printer}
		}
	}

	voices, err := synth.Describe(ctx)
	if err != nil {
		slog.Warn("speech engine unavailable, replies will be text only", "engine", synth.Name(), "error", err)
		return Text{Printer: printer}
	}

	slog.Info("speech engine ready", "engine", synth.Name(), "voices", len(voices))
	return NewVoice(synth, player, printer, opts)
}
