package host

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned by calls made outside the Connected state.
	ErrNotConnected = errors.New("host: not connected")
	// ErrDestroyed is returned by every call after Destroy.
	ErrDestroyed = errors.New("host: destroyed")
	// ErrBusy is returned by Connect when a connection is already active.
	ErrBusy = errors.New("host: connection already active")
)

// ScriptError reports that the host failed to evaluate a script.
// Only the caller of that script sees it.
type ScriptError struct {
	ID      uint32
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("host script error (message %d): %s", e.ID, e.Message)
}

// TimeoutError reports that a multi-part response stalled: no further
// part arrived within the window after the last one.
type TimeoutError struct {
	ID       uint32
	Window   time.Duration
	Received []Part
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("message %d timed out after %s with parts %v", e.ID, e.Window, e.Received)
}

// UnexpectedResponseError reports a response whose parts do not match
// what the request implied.
type UnexpectedResponseError struct {
	ID  uint32
	Msg string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response to message %d: %s", e.ID, e.Msg)
}

// IsScriptError returns true if err is or wraps a *ScriptError.
func IsScriptError(err error) bool {
	var se *ScriptError
	return errors.As(err, &se)
}

// IsTimeoutError returns true if err is or wraps a *TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsUnexpectedResponse returns true if err is or wraps an *UnexpectedResponseError.
func IsUnexpectedResponse(err error) bool {
	var ue *UnexpectedResponseError
	return errors.As(err, &ue)
}
