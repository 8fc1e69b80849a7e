// Package audio captures speech from a microphone and plays synthesized
// speech back. Devices are driven through external commands (arecord/aplay,
// sox, ...) so the binary needs no cgo audio bindings; each device handle is
// scoped to a single call.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Format describes raw little-endian PCM.
type Format struct {
	SampleRate int // Hz
	Channels   int
	Width      int // bytes per sample
}

// Speech is the format most recognizers expect: 16kHz mono 16-bit.
var Speech = Format{SampleRate: 16000, Channels: 1, Width: 2}

// FrameSize returns the number of bytes per frame (one sample on every channel).
func (f Format) FrameSize() int {
	return f.Channels * f.Width
}

// BytesPerSecond returns the PCM byte rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Bytes returns the frame-aligned byte length of d worth of audio.
func (f Format) Bytes(d time.Duration) int {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return frames * f.FrameSize()
}

// Duration returns how long n bytes of PCM last.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// ErrNotWAV is returned by DecodeWAV for data that is not a PCM WAV file.
var ErrNotWAV = errors.New("not a PCM wav file")

// EncodeWAV wraps raw PCM data in a WAV container.
func EncodeWAV(pcm []byte, f Format) []byte {
	dataLen := len(pcm)
	fileLen := 36 + dataLen // 44-byte header minus 8 bytes for RIFF header = 36

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(fileLen))
	buf.WriteString("WAVE")

	// fmt subchunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))                 // subchunk1 size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))                  // audio format (PCM)
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.Channels))         // channels
	_ = binary.Write(buf, binary.LittleEndian, uint32(f.SampleRate))       // sample rate
	_ = binary.Write(buf, binary.LittleEndian, uint32(f.BytesPerSecond())) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.FrameSize()))      // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.Width*8))          // bits per sample

	// data subchunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV extracts the PCM payload and format of a WAV file.
// Unknown chunks (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, ErrNotWAV
	}

	var (
		f       Format
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			if id == "data" && haveFmt {
				// Streamed WAVs may carry a placeholder size; take what is there.
				return data[body:], f, nil
			}
			return nil, Format{}, fmt.Errorf("%w: chunk %q overruns file", ErrNotWAV, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			if audioFormat := binary.LittleEndian.Uint16(data[body:]); audioFormat != 1 {
				return nil, Format{}, fmt.Errorf("%w: audio format %d", ErrNotWAV, audioFormat)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			f.Width = int(binary.LittleEndian.Uint16(data[body+14:])) / 8
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			return data[body : body+size], f, nil
		}

		pos = body + size + size%2 // chunks are word aligned
	}
	return nil, Format{}, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}
