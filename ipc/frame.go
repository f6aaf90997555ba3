// Package ipc implements the host application's framed byte transport.
//
// A frame on the wire is:
//
//	u32 length | i32 status | payload
//
// Both integers are big-endian. length covers status and payload but not
// itself. A non-zero status is a transport-level communication failure and
// terminates the connection.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame size constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// StatusSize is the size of the status field in bytes.
	StatusSize = 4
	// HeaderSize is the fixed frame overhead.
	HeaderSize = LengthPrefixSize + StatusSize
	// MaxFrameSize bounds length (status + payload). Full-document pixmaps
	// at the maximum dimension fit with room to spare.
	MaxFrameSize = 1 << 30
	// DefaultBufferSize is the initial receive buffer capacity.
	DefaultBufferSize = 64 * 1024
)

// Frame is one decoded unit of the wire protocol.
type Frame struct {
	Status  int32
	Payload []byte
}

// TransportErrorKind classifies transport failures.
type TransportErrorKind int

const (
	// TransportErrorIO indicates a read or write failure on the stream.
	TransportErrorIO TransportErrorKind = iota
	// TransportErrorStatus indicates a frame with a non-zero status.
	TransportErrorStatus
	// TransportErrorClosed indicates the connection is closed.
	TransportErrorClosed
	// TransportErrorMalformed indicates a length prefix that cannot be valid.
	TransportErrorMalformed
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportErrorIO:
		return "io"
	case TransportErrorStatus:
		return "status"
	case TransportErrorClosed:
		return "closed"
	case TransportErrorMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TransportError is fatal to the connection that raised it.
type TransportError struct {
	Kind   TransportErrorKind
	Msg    string
	Status int32
	Err    error
}

func (e *TransportError) Error() string {
	msg := e.Msg
	if e.Kind == TransportErrorStatus {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport %s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("transport %s: %s", e.Kind, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrClosed is returned by Send after the connection has shut down.
var ErrClosed = &TransportError{Kind: TransportErrorClosed, Msg: "connection closed"}

// AppendFrame appends a framed payload to dst.
func AppendFrame(dst []byte, status int32, payload []byte) []byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:LengthPrefixSize], uint32(StatusSize+len(payload)))
	binary.BigEndian.PutUint32(hdr[LengthPrefixSize:], uint32(status))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// EncodeFrame returns payload framed with the given status.
func EncodeFrame(status int32, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), status, payload)
}

// Reassembler turns an arbitrarily chunked byte stream back into frames.
//
// Bytes are appended to a growable buffer; after every chunk all complete
// frames are extracted in order and the unconsumed remainder is copied to
// the front of a buffer sized max(initial capacity, remainder). The decoded
// frame sequence does not depend on chunk boundaries.
type Reassembler struct {
	buf     []byte
	n       int
	initial int
}

// NewReassembler creates a reassembler with the given initial capacity.
// A non-positive size selects DefaultBufferSize.
func NewReassembler(initial int) *Reassembler {
	if initial <= 0 {
		initial = DefaultBufferSize
	}
	return &Reassembler{buf: make([]byte, initial), initial: initial}
}

// Buffered returns the number of bytes held for an incomplete frame.
func (r *Reassembler) Buffered() int {
	return r.n
}

// Feed appends chunk and calls emit for every complete frame, in order.
// Frame payloads are copies and stay valid after Feed returns.
// Processing stops at the first error from emit or at a malformed length.
func (r *Reassembler) Feed(chunk []byte, emit func(Frame) error) error {
	r.grow(len(chunk))
	r.n += copy(r.buf[r.n:], chunk)

	off := 0
	var err error
	for {
		avail := r.n - off
		if avail < LengthPrefixSize {
			break
		}
		length := binary.BigEndian.Uint32(r.buf[off:])
		if length < StatusSize || length > MaxFrameSize {
			err = &TransportError{
				Kind: TransportErrorMalformed,
				Msg:  fmt.Sprintf("invalid frame length %d", length),
			}
			break
		}
		total := LengthPrefixSize + int(length)
		if avail < total {
			break
		}
		status := int32(binary.BigEndian.Uint32(r.buf[off+LengthPrefixSize:]))
		payload := make([]byte, int(length)-StatusSize)
		copy(payload, r.buf[off+HeaderSize:off+total])
		off += total
		if err = emit(Frame{Status: status, Payload: payload}); err != nil {
			break
		}
	}

	r.compact(off)
	return err
}

func (r *Reassembler) grow(extra int) {
	need := r.n + extra
	if need <= len(r.buf) {
		return
	}
	size := 2 * len(r.buf)
	if size < need {
		size = need
	}
	nb := make([]byte, size)
	copy(nb, r.buf[:r.n])
	r.buf = nb
}

func (r *Reassembler) compact(consumed int) {
	if consumed == 0 {
		return
	}
	remainder := r.n - consumed
	size := r.initial
	if remainder > size {
		size = remainder
	}
	nb := make([]byte, size)
	copy(nb, r.buf[consumed:r.n])
	r.buf = nb
	r.n = remainder
}
