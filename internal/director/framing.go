package director

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single datagram's payload length, guarding
// against a peer claiming an absurd frame size and forcing an
// unbounded allocation.
const MaxFrameSize = 1 << 20

// WriteFrame writes a u32 little-endian length prefix followed by
// payload — the TCP-stream framing every datagram in this protocol
// rides over, since Go's net.Conn has no built-in message boundaries.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("director: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("director: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("director: frame size %d exceeds maximum %d", size, MaxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("director: read frame body: %w", err)
	}
	return payload, nil
}
