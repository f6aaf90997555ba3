// Package types defines core domain types shared across pixport packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// TransportMode selects how a session reaches the host application.
type TransportMode string

const (
	// TransportSocket is a TCP connection; payloads are encrypted.
	TransportSocket TransportMode = "socket"
	// TransportPipe is an inherited pipe pair; the channel is trusted and
	// payloads travel in the clear.
	TransportPipe TransportMode = "pipe"
)

// SessionMeta identifies one connection to the host application.
// All log entries and metrics carry these fields.
type SessionMeta struct {
	// SessionID is a unique identifier for the connection (uuid).
	SessionID string
	// Endpoint is "host:port" for sockets or "fd:<in>,<out>" for pipes.
	Endpoint string
	// Mode is the transport mode.
	Mode TransportMode
}

// Validate checks that the session identity is complete.
func (s *SessionMeta) Validate() error {
	if s.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	if s.Endpoint == "" {
		return errors.New("endpoint must be non-empty")
	}
	switch s.Mode {
	case TransportSocket, TransportPipe:
	default:
		return fmt.Errorf("unknown transport mode %q", s.Mode)
	}
	return nil
}
