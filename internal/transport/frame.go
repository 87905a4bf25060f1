package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the length prefix size in bytes.
	HeaderSize = 2

	// MaxFrameSize is the largest payload a frame may carry.
	MaxFrameSize = 16384
)

// ReadFrame reads one frame from r and returns its payload.
//
// Returns:
//   - []byte: The payload, freshly allocated
//   - error: ErrEmptyFrame, ErrFrameTooLarge, or the underlying read error
//     (io.EOF on a clean close between frames)
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	size := int(binary.BigEndian.Uint16(hdr[:]))
	switch {
	case size == 0:
		return nil, ErrEmptyFrame
	case size > MaxFrameSize:
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return buf, nil
}

// WriteFrame writes payload as one frame with a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	switch {
	case len(payload) == 0:
		return ErrEmptyFrame
	case len(payload) > MaxFrameSize:
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	copy(buf[HeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}
