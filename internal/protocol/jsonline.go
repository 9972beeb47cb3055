// Package protocol implements the wire framing shared by the DAW-facing
// transports: line-delimited JSON for the TCP command channel, OSC 1.0
// packets for the deep-API bridge, and the chunk envelope used when a
// bridge response exceeds a single UDP datagram.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxLineBytes caps a single JSON line on the TCP channel. Lines beyond
// this are a protocol violation, not a transient condition.
const MaxLineBytes = 16 << 20 // 16 MiB

// ErrLineTooLong is returned when a frame exceeds MaxLineBytes. The
// underlying reader stays usable; the oversized line has been consumed.
var ErrLineTooLong = fmt.Errorf("protocol: line exceeds %d bytes", MaxLineBytes)

// ErrMalformedFrame is returned when a line is not a valid JSON object.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// EncodeLine serializes v as a single JSON line terminated by '\n'.
func EncodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	if len(data) >= MaxLineBytes {
		return nil, ErrLineTooLong
	}
	return append(data, '\n'), nil
}

// LineReader reads newline-delimited JSON objects from a stream,
// retaining any bytes after the newline for the next read.
type LineReader struct {
	br *bufio.Reader
}

// NewLineReader wraps r. The internal buffer starts small and grows up
// to MaxLineBytes as needed.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// ReadObject reads one JSON line and unmarshals it into v.
// Returns ErrLineTooLong for oversized frames after draining them, so the
// connection remains usable for the next frame.
func (lr *LineReader) ReadObject(v any) error {
	var line []byte
	for {
		frag, err := lr.br.ReadSlice('\n')
		line = append(line, frag...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			if len(line) > MaxLineBytes {
				if derr := lr.drainLine(); derr != nil {
					return derr
				}
				return ErrLineTooLong
			}
			continue
		}
		return err
	}
	line = bytes.TrimRight(line, "\r\n")
	if len(line) > MaxLineBytes {
		return ErrLineTooLong
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}

// drainLine consumes the remainder of an oversized line.
func (lr *LineReader) drainLine() error {
	for {
		_, err := lr.br.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return err
	}
}
