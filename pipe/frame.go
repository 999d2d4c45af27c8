package pipe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"syscall"
)

// DefaultMaxFrame is the largest frame body accepted when no limit is set.
const DefaultMaxFrame = 16 << 20

// A frame is a 4-byte big-endian body length followed by the body.
const headerLen = 4

// WriteFrame writes body to w as a single frame.
func WriteFrame(w io.Writer, body []byte) error {
	if uint64(len(body)) > 1<<32-1 {
		return fmt.Errorf("frame body too large (%d bytes)", len(body))
	}
	var hdr [headerLen]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads a single frame from r and returns its body.
//
// If r ends before any byte is read, ReadFrame reports ErrConnectionClosed.
// A truncated frame, or one whose body exceeds maxFrame bytes, is reported as
// a plain error for the caller to classify.
func ReadFrame(r io.Reader, maxFrame int) ([]byte, error) {
	var hdr [headerLen]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && (errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET)) {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	if uint64(size) > uint64(maxFrame) {
		return nil, fmt.Errorf("frame body of %d bytes exceeds limit of %d", size, maxFrame)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}
