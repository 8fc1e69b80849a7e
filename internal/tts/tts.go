// Package tts defines the interface for text-to-speech synthesis.
//
// solace speaks each assistant reply aloud in the console. Synthesis happens
// in an external engine; this package only describes the port, the engines
// live in subpackages.
package tts

import "context"

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr", "es") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the engine identifier (e.g., "piper").
	Name() string

	// Describe checks that the engine is reachable and returns the voices
	// it offers. It is called once at startup.
	Describe(ctx context.Context) ([]Voice, error)

	// Synthesize generates a WAV file from the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*Result, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// Voice is one voice offered by an engine.
type Voice struct {
	Name      string   `json:"name"`
	Languages []string `json:"languages,omitempty"`
}

// Result holds the output of TTS synthesis.
type Result struct {
	// Audio is the synthesized audio as a WAV file.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz (e.g., 22050).
	SampleRate int

	// Channels is the number of audio channels (typically 1).
	Channels int
}
