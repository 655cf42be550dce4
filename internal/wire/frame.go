// Package wire implements the framed binary protocol spoken between client
// and server: a 4-byte big-endian length prefix followed by an opaque
// payload, and the field-by-field codec for the request/response payloads
// themselves.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxFrameSize is the largest payload a peer may send. Frames above this
// are a protocol violation and fatal to the connection.
const MaxFrameSize = 16 << 20 // 16 MiB

// LenPrefixSize is the size of the frame length prefix in bytes.
const LenPrefixSize = 4

var (
	// ErrFrameTooLarge reports a length prefix above MaxFrameSize.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
	// ErrTruncated reports end-of-stream in the middle of a frame.
	ErrTruncated = errors.New("wire: stream truncated mid-frame")
)

// Decoder is a streaming frame decoder. Feed it byte chunks in arrival
// order; it yields zero or more complete payloads per chunk and buffers
// partial data between calls. A Decoder is per-connection state and is not
// safe for concurrent use.
type Decoder struct {
	lenBuf  [LenPrefixSize]byte
	lenHave int

	body     []byte // nil while accumulating the length prefix
	bodyHave int
}

// Feed appends a chunk to the decoder and returns the complete payloads it
// finished. Returned slices are freshly allocated and safe to retain.
// A non-nil error means the stream is unrecoverable and the connection
// must be closed.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	var out [][]byte
	for len(chunk) > 0 {
		if d.body == nil {
			n := copy(d.lenBuf[d.lenHave:], chunk)
			d.lenHave += n
			chunk = chunk[n:]
			if d.lenHave < LenPrefixSize {
				return out, nil
			}
			length := binary.BigEndian.Uint32(d.lenBuf[:])
			if length > MaxFrameSize {
				return out, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
			}
			d.lenHave = 0
			d.body = make([]byte, length)
			d.bodyHave = 0
			// Zero-length frames complete immediately.
		}
		n := copy(d.body[d.bodyHave:], chunk)
		d.bodyHave += n
		chunk = chunk[n:]
		if d.bodyHave == len(d.body) {
			out = append(out, d.body)
			d.body = nil
			d.bodyHave = 0
		}
	}
	return out, nil
}

// CheckEOF reports whether end-of-stream at this point is clean. Mid-prefix
// or mid-body EOF is a protocol error.
func (d *Decoder) CheckEOF() error {
	if d.lenHave != 0 || d.body != nil {
		return ErrTruncated
	}
	return nil
}

// EncodeFrame prepends the length prefix to payload, returning a single
// contiguous byte slice ready for the outbound queue. Writers handle
// back-pressure; the encoder never splits a frame.
func EncodeFrame(payload []byte) []byte {
	buf := make([]byte, LenPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[LenPrefixSize:], payload)
	return buf
}
