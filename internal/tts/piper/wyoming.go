package piper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"maps"
)

// Wyoming protocol framing (per event):
//
//	{"type": "...", "data_length": N, "payload_length": M}\n
//	<data_bytes>      (N bytes of JSON, if data_length > 0)
//	<payload_bytes>   (M bytes, if payload_length > 0)
//
// Older servers put "data" inline in the header line; both forms are read.

const (
	protocolVersion = "1.5.2"
	maxLineLength   = 1 << 20
)

type wyomingEvent struct {
	Type string
	Data map[string]any
}

type wyomingHeader struct {
	Type          string         `json:"type"`
	Version       string         `json:"version,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	DataLength    int            `json:"data_length,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
}

// writeEvent sends a Wyoming event over the connection.
func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	hdr := wyomingHeader{Type: evt.Type, Version: protocolVersion, PayloadLength: len(payload)}

	var data []byte
	if len(evt.Data) > 0 {
		var err error
		if data, err = json.Marshal(evt.Data); err != nil {
			return fmt.Errorf("marshalling event data: %w", err)
		}
		hdr.DataLength = len(data)
	}

	line, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("marshalling event header: %w", err)
	}
	line = append(line, '\n')

	for _, chunk := range [][]byte{line, data, payload} {
		if len(chunk) == 0 {
			continue
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// readEvent reads a Wyoming event from the connection.
func readEvent(r *bufio.Reader) (*wyomingEvent, []byte, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var hdr wyomingHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, nil, fmt.Errorf("invalid wyoming header %q: %w", line, err)
	}
	if hdr.DataLength < 0 || hdr.PayloadLength < 0 {
		return nil, nil, fmt.Errorf("invalid wyoming header lengths: %q", line)
	}

	evt := &wyomingEvent{Type: hdr.Type, Data: hdr.Data}
	if hdr.DataLength > 0 {
		buf := make([]byte, hdr.DataLength)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, nil, fmt.Errorf("reading data: %w", err)
		}
		var extra map[string]any
		if err := json.Unmarshal(buf, &extra); err != nil {
			return nil, nil, fmt.Errorf("unmarshalling event data: %w", err)
		}
		if evt.Data == nil {
			evt.Data = extra
		} else {
			maps.Copy(evt.Data, extra)
		}
	}

	var payload []byte
	if hdr.PayloadLength > 0 {
		payload = make([]byte, hdr.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}

	return evt, payload, nil
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxLineLength {
			return nil, fmt.Errorf("header line exceeds %d bytes", maxLineLength)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
