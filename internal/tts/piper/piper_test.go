package piper

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/solace/internal/audio"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/tts"
)

// fakePiper serves one Wyoming connection per accepted client using handle.
func fakePiper(t *testing.T, handle func(r *bufio.Reader, conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(bufio.NewReader(conn), conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestWyomingFraming(t *testing.T) {
	var buf bytes.Buffer
	evt := wyomingEvent{Type: "audio-chunk", Data: map[string]any{"rate": 16000.0}}
	require.NoError(t, writeEvent(&buf, evt, []byte{1, 2, 3, 4}))

	got, payload, err := readEvent(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "audio-chunk", got.Type)
	assert.Equal(t, 16000.0, got.Data["rate"])
	assert.Equal(t, []byte{1, 2, 3, 4}, payload)
}

func TestWyomingFraming_InlineData(t *testing.T) {
	raw := "{\"type\":\"audio-start\",\"data\":{\"rate\":22050,\"width\":2}}\n"
	got, payload, err := readEvent(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	assert.Equal(t, "audio-start", got.Type)
	assert.Equal(t, 22050.0, got.Data["rate"])
	assert.Nil(t, payload)
}

func TestWyomingFraming_Malformed(t *testing.T) {
	_, _, err := readEvent(bufio.NewReader(bytes.NewBufferString("12 0\n")))
	assert.Error(t, err)

	_, _, err = readEvent(bufio.NewReader(bytes.NewBufferString("{\"type\":\"x\",\"payload_length\":10}\nshort")))
	assert.Error(t, err)
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	requests := make(chan map[string]any, 1)

	addr := fakePiper(t, func(r *bufio.Reader, conn net.Conn) {
		evt, _, err := readEvent(r)
		if err != nil || evt.Type != "synthesize" {
			return
		}
		requests <- evt.Data

		_ = writeEvent(conn, wyomingEvent{Type: "audio-start", Data: map[string]any{"rate": 16000, "width": 2, "channels": 1}}, nil)
		_ = writeEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm[:4])
		_ = writeEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm[4:])
		_ = writeEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	})

	s := New(config.PiperConfig{Endpoint: "tcp://" + addr, Voices: map[string]string{"fr": "fr_FR-upmc-medium"}})
	res, err := s.Synthesize(context.Background(), "Bonjour.", tts.SynthesizeOpts{Language: "fr"})
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, "Bonjour.", req["text"])
	assert.Equal(t, map[string]any{"name": "fr_FR-upmc-medium"}, req["voice"])
	assert.Equal(t, "audio/wav", res.ContentType)
	assert.Equal(t, 16000, res.SampleRate)

	decoded, f, err := audio.DecodeWAV(res.Audio)
	require.NoError(t, err)
	assert.Equal(t, audio.Speech, f)
	assert.Equal(t, pcm, decoded)
}

func TestSynthesize_ServerError(t *testing.T) {
	addr := fakePiper(t, func(r *bufio.Reader, conn net.Conn) {
		_, _, _ = readEvent(r)
		_ = writeEvent(conn, wyomingEvent{Type: "error", Data: map[string]any{"text": "voice not found"}}, nil)
	})

	_, err := New(config.PiperConfig{Endpoint: addr}).Synthesize(context.Background(), "hi", tts.SynthesizeOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice not found")
}

func TestSynthesize_Validation(t *testing.T) {
	s := New(config.PiperConfig{})
	_, err := s.Synthesize(context.Background(), "  ", tts.SynthesizeOpts{})
	assert.Error(t, err)

	_, err = s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{Language: "en"})
	assert.ErrorContains(t, err, "no piper endpoint")
}

func TestDescribe(t *testing.T) {
	addr := fakePiper(t, func(r *bufio.Reader, conn net.Conn) {
		evt, _, err := readEvent(r)
		if err != nil || evt.Type != "describe" {
			return
		}
		_ = writeEvent(conn, wyomingEvent{Type: "info", Data: map[string]any{
			"tts": []any{map[string]any{
				"name": "piper",
				"voices": []any{
					map[string]any{"name": "en_US-lessac-medium", "languages": []any{"en_US"}},
					map[string]any{"name": ""},
				},
			}},
		}}, nil)
	})

	voices, err := New(config.PiperConfig{Endpoint: addr}).Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []tts.Voice{{Name: "en_US-lessac-medium", Languages: []string{"en_US"}}}, voices)
}

func TestDescribe_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = New(config.PiperConfig{Endpoint: addr}).Describe(context.Background())
	assert.ErrorContains(t, err, "connecting to piper")

	_, err = New(config.PiperConfig{}).Describe(context.Background())
	assert.Error(t, err)
}
