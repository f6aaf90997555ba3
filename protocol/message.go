// Package protocol implements the host application's message layer on top
// of the framed transport.
//
// Every frame payload (after decryption, when keyed) starts with a header:
//
//	u32 protocolVersion | u32 messageId | u32 messageType | body
//
// All integers are big-endian. Decoded payloads are surfaced as a closed
// set of Message types.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// Header constants.
const (
	// Version is the only protocol version understood.
	Version = 1
	// HeaderSize is the size of the payload header in bytes.
	HeaderSize = 12
	// IDModulus bounds message ids. Ids live in [1, IDModulus).
	IDModulus = 1 << 24
)

// MessageType identifies the payload body layout.
type MessageType uint32

// Message types on the wire.
const (
	TypeError        MessageType = 1
	TypeScriptResult MessageType = 2
	TypePixelBuffer  MessageType = 3
	TypeColorProfile MessageType = 4
	TypeKeepAlive    MessageType = 6
)

func (t MessageType) String() string {
	switch t {
	case TypeError:
		return "error"
	case TypeScriptResult:
		return "script_result"
	case TypePixelBuffer:
		return "pixel_buffer"
	case TypeColorProfile:
		return "color_profile"
	case TypeKeepAlive:
		return "keep_alive"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Literal script results that are passed through as text.
const (
	// NoValue is what the host returns for a script without a result.
	NoValue = "undefined"
	// StillAlive is the host's reply to a keep-alive script.
	StillAlive = "Yep, still alive"
)

// eventSeparator splits "name\rvalue" host events.
const eventSeparator = "\r"

// Header is the decoded payload header.
type Header struct {
	Version uint32
	ID      uint32
	Type    MessageType
}

// AppendPayload appends a header and body to dst.
func AppendPayload(dst []byte, id uint32, typ MessageType, body []byte) []byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], Version)
	binary.BigEndian.PutUint32(hdr[4:8], id)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(typ))
	dst = append(dst, hdr[:]...)
	return append(dst, body...)
}

// EncodePayload returns a header followed by body.
func EncodePayload(id uint32, typ MessageType, body []byte) []byte {
	return AppendPayload(make([]byte, 0, HeaderSize+len(body)), id, typ, body)
}

// ParseHeader splits payload into its header and body.
func ParseHeader(payload []byte) (Header, []byte, error) {
	if len(payload) < HeaderSize {
		return Header{}, nil, &ProtocolError{
			Kind: ProtocolErrorDecode,
			Msg:  fmt.Sprintf("payload of %d bytes is shorter than header", len(payload)),
		}
	}
	h := Header{
		Version: binary.BigEndian.Uint32(payload[0:4]),
		ID:      binary.BigEndian.Uint32(payload[4:8]),
		Type:    MessageType(binary.BigEndian.Uint32(payload[8:12])),
	}
	return h, payload[HeaderSize:], nil
}

// Message is one decoded host message. The set of implementations is
// closed; consumers switch on the concrete type.
type Message interface {
	MessageID() uint32
	message()
}

// ScriptResult is the reply to an evaluated script.
type ScriptResult struct {
	ID uint32
	// Text is the raw reply.
	Text string
	// Value is Text parsed as JSON, or Text itself for literal replies and
	// text that is not JSON.
	Value any
}

// HostEvent is a host-originated notification carried in a script result
// of the form "name\rvalue".
type HostEvent struct {
	ID    uint32
	Name  string
	Text  string
	Value any
}

// PixelBuffer carries raw pixmap bytes for a request.
type PixelBuffer struct {
	ID   uint32
	Data []byte
}

// ColorProfile carries raw ICC profile bytes for a request.
type ColorProfile struct {
	ID   uint32
	Data []byte
}

// ErrorMessage reports a failed script evaluation.
type ErrorMessage struct {
	ID   uint32
	Text string
}

// KeepAlive acknowledges a keep-alive.
type KeepAlive struct {
	ID uint32
}

func (m *ScriptResult) MessageID() uint32 { return m.ID }
func (m *HostEvent) MessageID() uint32    { return m.ID }
func (m *PixelBuffer) MessageID() uint32  { return m.ID }
func (m *ColorProfile) MessageID() uint32 { return m.ID }
func (m *ErrorMessage) MessageID() uint32 { return m.ID }
func (m *KeepAlive) MessageID() uint32    { return m.ID }

func (*ScriptResult) message() {}
func (*HostEvent) message()    {}
func (*PixelBuffer) message()  {}
func (*ColorProfile) message() {}
func (*ErrorMessage) message() {}
func (*KeepAlive) message()    {}

// Decode parses a plaintext payload into a Message.
//
// A script result that does not parse as JSON is still returned, with
// Value set to the text, together with a non-nil valueErr. Literal replies
// never produce a valueErr. err is a *ProtocolError for unknown versions,
// unknown types and truncated payloads.
func Decode(payload []byte) (msg Message, valueErr error, err error) {
	h, body, err := ParseHeader(payload)
	if err != nil {
		return nil, nil, err
	}
	if h.Version != Version {
		return nil, nil, &ProtocolError{
			Kind: ProtocolErrorVersion,
			ID:   h.ID,
			Msg:  fmt.Sprintf("unsupported protocol version %d", h.Version),
		}
	}

	switch h.Type {
	case TypeScriptResult:
		text := string(body)
		if parts := strings.Split(text, eventSeparator); len(parts) == 2 {
			value, verr := parseValue(parts[1])
			return &HostEvent{ID: h.ID, Name: parts[0], Text: parts[1], Value: value}, verr, nil
		}
		value, verr := parseValue(text)
		return &ScriptResult{ID: h.ID, Text: text, Value: value}, verr, nil
	case TypePixelBuffer:
		return &PixelBuffer{ID: h.ID, Data: body}, nil, nil
	case TypeColorProfile:
		return &ColorProfile{ID: h.ID, Data: body}, nil, nil
	case TypeError:
		return &ErrorMessage{ID: h.ID, Text: string(body)}, nil, nil
	case TypeKeepAlive:
		return &KeepAlive{ID: h.ID}, nil, nil
	default:
		return nil, nil, &ProtocolError{
			Kind: ProtocolErrorType,
			ID:   h.ID,
			Msg:  fmt.Sprintf("unknown message type %d", uint32(h.Type)),
		}
	}
}

// parseValue decodes text as JSON unless it is a known literal.
func parseValue(text string) (any, error) {
	switch text {
	case "", NoValue, StillAlive:
		return text, nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text, err
	}
	return v, nil
}
