package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"
)

const (
	// MinEnergyThreshold is the floor for the speech energy threshold, in
	// 16-bit RMS units. Calibration in a silent room never goes below it.
	MinEnergyThreshold = 300.0

	// EnergyRatio is how far above the ambient noise level speech must be.
	EnergyRatio = 1.5

	// DefaultChunk is the analysis window.
	DefaultChunk = 64 * time.Millisecond
)

// ErrSilence is returned when no speech rises above the ambient noise.
var ErrSilence = errors.New("no speech detected")

// RMS returns the root-mean-square energy of 16-bit little-endian PCM.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Calibrate listens to d worth of ambient audio from r and returns the
// energy threshold above which audio is considered speech.
func Calibrate(r io.Reader, f Format, d time.Duration) (float64, error) {
	if f.Width != 2 {
		return 0, fmt.Errorf("calibrate: unsupported sample width %d", f.Width)
	}
	n := f.Bytes(d)
	if n == 0 {
		return MinEnergyThreshold, nil
	}

	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("reading ambient audio: %w", err)
	}

	return max(MinEnergyThreshold, RMS(buf[:read])*EnergyRatio), nil
}

// CaptureOptions bounds a single phrase capture.
type CaptureOptions struct {
	// Threshold is the speech energy threshold, usually from Calibrate.
	Threshold float64

	// ListenTimeout bounds the wait for speech to start. Zero waits until
	// the source ends.
	ListenTimeout time.Duration

	// PhraseLimit bounds the phrase length, measured from speech onset.
	// Zero means no limit.
	PhraseLimit time.Duration

	// PauseThreshold is the run of silence that ends a phrase.
	PauseThreshold time.Duration

	// PreRoll is the audio kept from before speech onset so the first
	// syllable is not clipped.
	PreRoll time.Duration

	// Chunk is the analysis window; DefaultChunk when zero.
	Chunk time.Duration
}

// CapturePhrase reads PCM from r until one phrase has been spoken and returns it.
//
// It waits for a chunk whose energy exceeds the threshold, then records until
// PauseThreshold of continuous silence, PhraseLimit, or the end of the source.
// If the source ends (or ListenTimeout passes) before any speech, ErrSilence
// is returned.
func CapturePhrase(ctx context.Context, r io.Reader, f Format, opts CaptureOptions) ([]byte, error) {
	if f.Width != 2 {
		return nil, fmt.Errorf("capture: unsupported sample width %d", f.Width)
	}
	if opts.Chunk <= 0 {
		opts.Chunk = DefaultChunk
	}
	if opts.Threshold <= 0 {
		opts.Threshold = MinEnergyThreshold
	}

	chunkBytes := f.Bytes(opts.Chunk)
	if chunkBytes == 0 {
		chunkBytes = f.FrameSize()
	}
	chunkDur := f.Duration(chunkBytes)
	preRollChunks := int(opts.PreRoll / chunkDur)

	buf := make([]byte, chunkBytes)
	readChunk := func() ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 && n%f.FrameSize() == 0 {
			return slices.Clone(buf[:n]), nil
		}
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}

	// Wait for speech onset.
	var (
		preRoll [][]byte
		waited  time.Duration
		phrase  []byte
	)
	for {
		chunk, err := readChunk()
		if errors.Is(err, io.EOF) {
			return nil, ErrSilence
		}
		if err != nil {
			return nil, err
		}
		waited += chunkDur

		if RMS(chunk) > opts.Threshold {
			for _, c := range preRoll {
				phrase = append(phrase, c...)
			}
			phrase = append(phrase, chunk...)
			break
		}

		if preRollChunks > 0 {
			preRoll = append(preRoll, chunk)
			if len(preRoll) > preRollChunks {
				preRoll = preRoll[1:]
			}
		}
		if opts.ListenTimeout > 0 && waited >= opts.ListenTimeout {
			return nil, ErrSilence
		}
	}

	// Record until a pause, the phrase limit, or the end of the source.
	spoken := chunkDur
	var silent time.Duration
	for opts.PhraseLimit <= 0 || spoken < opts.PhraseLimit {
		chunk, err := readChunk()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		phrase = append(phrase, chunk...)
		spoken += chunkDur

		if RMS(chunk) > opts.Threshold {
			silent = 0
			continue
		}
		silent += chunkDur
		if opts.PauseThreshold > 0 && silent >= opts.PauseThreshold {
			break
		}
	}

	return phrase, nil
}
