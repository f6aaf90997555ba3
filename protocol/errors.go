package protocol

import (
	"errors"
	"fmt"
)

// ProtocolErrorKind classifies protocol errors.
type ProtocolErrorKind int

const (
	// ProtocolErrorDecode indicates a truncated or undecodable payload.
	ProtocolErrorDecode ProtocolErrorKind = iota
	// ProtocolErrorVersion indicates an unsupported protocol version.
	ProtocolErrorVersion
	// ProtocolErrorType indicates an unknown message type.
	ProtocolErrorType
	// ProtocolErrorCipher indicates a payload that failed to decrypt.
	ProtocolErrorCipher
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case ProtocolErrorDecode:
		return "decode"
	case ProtocolErrorVersion:
		return "version"
	case ProtocolErrorType:
		return "type"
	case ProtocolErrorCipher:
		return "cipher"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ProtocolError is a message-level failure. The connection survives it.
//
//nolint:revive // ProtocolError reads better at call sites than Error
type ProtocolError struct {
	Kind ProtocolErrorKind
	ID   uint32
	Msg  string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("protocol %s: %s", e.Kind, e.Msg)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError returns true if err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ErrIDsExhausted is returned when every message id is in flight.
var ErrIDsExhausted = errors.New("no free message id")
