package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tone returns d of 16-bit mono PCM at a constant amplitude.
func tone(f Format, d time.Duration, amplitude int16) []byte {
	n := f.Bytes(d) / 2
	pcm := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		s := amplitude
		if i%2 == 1 {
			s = -amplitude
		}
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}
	return pcm
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func TestFormat(t *testing.T) {
	f := Speech
	assert.Equal(t, 2, f.FrameSize())
	assert.Equal(t, 32000, f.BytesPerSecond())
	assert.Equal(t, 3200, f.Bytes(100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, f.Duration(3200))
	assert.Equal(t, time.Duration(0), Format{}.Duration(10))
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := tone(Speech, 50*time.Millisecond, 1000)
	wav := EncodeWAV(pcm, Speech)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))

	got, f, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, Speech, f)
	assert.Equal(t, pcm, got)
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	pcm := tone(Speech, 10*time.Millisecond, 500)
	wav := EncodeWAV(pcm, Speech)

	// Insert a LIST chunk between fmt and data.
	list := []byte("LIST\x04\x00\x00\x00INFO")
	withList := concat(wav[:36], list, wav[36:])
	binary.LittleEndian.PutUint32(withList[4:], uint32(len(withList)-8))

	got, f, err := DecodeWAV(withList)
	require.NoError(t, err)
	assert.Equal(t, Speech, f)
	assert.Equal(t, pcm, got)
}

func TestDecodeWAV_Rejects(t *testing.T) {
	_, _, err := DecodeWAV([]byte("OggS not a wav file"))
	assert.ErrorIs(t, err, ErrNotWAV)

	wav := EncodeWAV(nil, Speech)
	binary.LittleEndian.PutUint16(wav[20:], 3) // IEEE float
	_, _, err = DecodeWAV(wav)
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 1000.0, RMS(tone(Speech, 10*time.Millisecond, 1000)), 0.001)
}

func TestCalibrate(t *testing.T) {
	t.Run("quiet room uses floor", func(t *testing.T) {
		threshold, err := Calibrate(bytes.NewReader(tone(Speech, 200*time.Millisecond, 20)), Speech, 200*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, MinEnergyThreshold, threshold)
	})

	t.Run("noisy room scales with ambient energy", func(t *testing.T) {
		threshold, err := Calibrate(bytes.NewReader(tone(Speech, 200*time.Millisecond, 1000)), Speech, 200*time.Millisecond)
		require.NoError(t, err)
		assert.InDelta(t, 1500.0, threshold, 0.001)
	})

	t.Run("short source is tolerated", func(t *testing.T) {
		_, err := Calibrate(bytes.NewReader(tone(Speech, 50*time.Millisecond, 10)), Speech, 200*time.Millisecond)
		assert.NoError(t, err)
	})

	t.Run("empty source fails", func(t *testing.T) {
		_, err := Calibrate(bytes.NewReader(nil), Speech, 200*time.Millisecond)
		assert.Error(t, err)
	})
}

func TestCapturePhrase(t *testing.T) {
	quiet := func(d time.Duration) []byte { return tone(Speech, d, 10) }
	loud := func(d time.Duration) []byte { return tone(Speech, d, 5000) }

	opts := CaptureOptions{
		Threshold:      MinEnergyThreshold,
		PauseThreshold: 256 * time.Millisecond,
		PhraseLimit:    8 * time.Second,
		PreRoll:        128 * time.Millisecond,
	}

	t.Run("stops at pause and keeps pre-roll", func(t *testing.T) {
		src := concat(quiet(640*time.Millisecond), loud(640*time.Millisecond), quiet(2*time.Second))

		phrase, err := CapturePhrase(context.Background(), bytes.NewReader(src), Speech, opts)
		require.NoError(t, err)

		// pre-roll (128ms) + speech (640ms) + pause (256ms)
		assert.Equal(t, 1024*time.Millisecond, Speech.Duration(len(phrase)))
	})

	t.Run("phrase limit caps capture", func(t *testing.T) {
		limited := opts
		limited.PhraseLimit = 320 * time.Millisecond
		limited.PreRoll = 0

		phrase, err := CapturePhrase(context.Background(), bytes.NewReader(loud(2*time.Second)), Speech, limited)
		require.NoError(t, err)
		assert.Equal(t, 320*time.Millisecond, Speech.Duration(len(phrase)))
	})

	t.Run("end of source ends phrase", func(t *testing.T) {
		phrase, err := CapturePhrase(context.Background(), bytes.NewReader(loud(192*time.Millisecond)), Speech, opts)
		require.NoError(t, err)
		assert.Equal(t, 192*time.Millisecond, Speech.Duration(len(phrase)))
	})

	t.Run("silence only", func(t *testing.T) {
		_, err := CapturePhrase(context.Background(), bytes.NewReader(quiet(time.Second)), Speech, opts)
		assert.ErrorIs(t, err, ErrSilence)
	})

	t.Run("listen timeout", func(t *testing.T) {
		timed := opts
		timed.ListenTimeout = 256 * time.Millisecond
		src := concat(quiet(time.Second), loud(time.Second))

		_, err := CapturePhrase(context.Background(), bytes.NewReader(src), Speech, timed)
		assert.ErrorIs(t, err, ErrSilence)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := CapturePhrase(ctx, bytes.NewReader(loud(time.Second)), Speech, opts)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCommandSource(t *testing.T) {
	if _, err := exec.LookPath("head"); err != nil {
		t.Skip("head not available")
	}

	src := NewCommandSource([]string{"head", "-c", "3200", "/dev/zero"})
	stream, err := src.Open(context.Background())
	require.NoError(t, err)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Len(t, data, 3200)
	assert.NoError(t, stream.Close())
	assert.NoError(t, stream.Close(), "close is idempotent")
}

func TestCommandSource_CloseKillsRecorder(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	src := NewCommandSource([]string{"cat", "/dev/zero"})
	stream, err := src.Open(context.Background())
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- stream.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not release the recorder")
	}
}

func TestCommandSource_NotConfigured(t *testing.T) {
	_, err := NewCommandSource(nil).Open(context.Background())
	assert.Error(t, err)
}

func TestCommandPlayer(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("plays to completion", func(t *testing.T) {
		p := NewCommandPlayer([]string{"sh", "-c", "cat > /dev/null"})
		require.NoError(t, p.Available())
		assert.NoError(t, p.Play(context.Background(), EncodeWAV(tone(Speech, 10*time.Millisecond, 100), Speech)))
	})

	t.Run("cancellation stops playback", func(t *testing.T) {
		p := NewCommandPlayer([]string{"sh", "-c", "exec sleep 10"})
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := p.Play(ctx, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("player failure", func(t *testing.T) {
		p := NewCommandPlayer([]string{"sh", "-c", "echo broken >&2; exit 3"})
		err := p.Play(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("missing binary", func(t *testing.T) {
		p := NewCommandPlayer([]string{"definitely-not-a-player-binary"})
		assert.Error(t, p.Available())
	})
}
