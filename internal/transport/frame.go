package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Stream framing: 0x94 0xC3, big-endian uint16 payload length, payload bytes.
// Anything between frames is discarded until the two-byte header reappears.
var frameHeader = [2]byte{0x94, 0xC3}

// maxFramePayload bounds a single frame; lengths above it indicate a stream
// desync and trigger a new header search instead of a huge allocation.
const maxFramePayload = 512

type readFullFunc func(buf []byte) error

func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > maxFramePayload {
		return nil, fmt.Errorf("frame payload too large: %d", len(payload))
	}

	frame := make([]byte, 4+len(payload))
	frame[0] = frameHeader[0]
	frame[1] = frameHeader[1]
	// #nosec G115 -- length is bounded by maxFramePayload above.
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[4:], payload)

	return frame, nil
}

func readFrame(readFull readFullFunc) ([]byte, error) {
	for {
		if err := resyncToHeader(readFull); err != nil {
			return nil, err
		}

		var lenBuf [2]byte
		if err := readFull(lenBuf[:]); err != nil {
			return nil, fmt.Errorf("read frame length: %w", err)
		}
		ln := int(binary.BigEndian.Uint16(lenBuf[:]))
		if ln == 0 || ln > maxFramePayload {
			// Bogus length, resume the header search.
			continue
		}

		payload := make([]byte, ln)
		if err := readFull(payload); err != nil {
			return nil, fmt.Errorf("read frame payload: %w", err)
		}

		return payload, nil
	}
}

// resyncToHeader consumes bytes until the two header bytes are seen in
// sequence. A 0x94 followed by anything else restarts the search from the
// follow-up byte, so 0x94 0x94 0xC3 still syncs.
func resyncToHeader(readFull readFullFunc) error {
	var b [1]byte
	sawFirst := false
	for {
		if err := readFull(b[:]); err != nil {
			return fmt.Errorf("scan frame header: %w", err)
		}
		switch {
		case sawFirst && b[0] == frameHeader[1]:
			return nil
		case b[0] == frameHeader[0]:
			sawFirst = true
		default:
			sawFirst = false
		}
	}
}

func ioReadFullFunc(r io.Reader) readFullFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)

		return err
	}
}
