package log

import (
	"strings"
	"time"
)

// Event is one entry of a protocol capture.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one transport session (UUID). Empty for events
	// raised by the connection manager outside a session.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Address is the mixer endpoint (ws://host:port).
	Address string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"6,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"7,keyasint,omitempty"`
	Control     *ControlEvent     `cbor:"8,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"9,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionLocal marks events that never crossed the wire.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (request/response/event).
	CategoryMessage Category = 0
	// CategoryControl indicates a websocket control frame (ping/pong/close).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory maps a category name (case-insensitive) to its value.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryMessage, CategoryControl, CategoryState, CategoryError} {
		if strings.EqualFold(s, c.String()) {
			return c, true
		}
	}
	return 0, false
}

// MessageEvent captures one obs-websocket message.
type MessageEvent struct {
	// Type distinguishes handshake/request/response/event.
	Type MessageType `cbor:"1,keyasint"`

	// OpCode is the obs-websocket op code.
	OpCode int `cbor:"2,keyasint"`

	// RequestID correlates request/response pairs (empty for events).
	RequestID string `cbor:"3,keyasint,omitempty"`

	// Name is the request type for requests and responses, or the event type.
	Name string `cbor:"4,keyasint,omitempty"`

	// For responses: whether the mixer accepted the request.
	Result *bool `cbor:"5,keyasint,omitempty"`

	// For responses: the request status code and comment.
	StatusCode *int   `cbor:"6,keyasint,omitempty"`
	Comment    string `cbor:"7,keyasint,omitempty"`

	// Payload is the raw JSON body (may be truncated for large messages).
	Payload   []byte `cbor:"8,keyasint,omitempty"`
	Truncated bool   `cbor:"9,keyasint,omitempty"`

	// Latency is the round trip from request send to response receipt (response only).
	// Stored as nanoseconds.
	Latency *time.Duration `cbor:"10,keyasint,omitempty"`
}

// MaxPayloadSize bounds the payload bytes kept per captured message.
const MaxPayloadSize = 4096

// SetPayload stores data, truncated to MaxPayloadSize.
func (m *MessageEvent) SetPayload(data []byte) {
	if len(data) > MaxPayloadSize {
		m.Payload = append([]byte(nil), data[:MaxPayloadSize]...)
		m.Truncated = true
		return
	}
	m.Payload = append([]byte(nil), data...)
	m.Truncated = false
}

// MessageType distinguishes the message kinds of the protocol.
type MessageType uint8

const (
	// MessageTypeHandshake covers Hello, Identify and Identified.
	MessageTypeHandshake MessageType = 0
	// MessageTypeRequest indicates a request message.
	MessageTypeRequest MessageType = 1
	// MessageTypeResponse indicates a request response.
	MessageTypeResponse MessageType = 2
	// MessageTypeEvent indicates a mixer event.
	MessageTypeEvent MessageType = 3
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeHandshake:
		return "HANDSHAKE"
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeEvent:
		return "EVENT"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the connection manager status.
	StateEntityConnection StateEntity = 0
	// StateEntitySession is a single transport session.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ControlEvent captures websocket control frames.
type ControlEvent struct {
	// Type of control frame.
	Type ControlType `cbor:"1,keyasint"`

	// CloseCode is the websocket close code for close frames.
	CloseCode *int `cbor:"2,keyasint,omitempty"`
}

// ControlType indicates the type of control frame.
type ControlType uint8

const (
	// ControlPing indicates a ping frame.
	ControlPing ControlType = 0
	// ControlPong indicates a pong frame.
	ControlPong ControlType = 1
	// ControlClose indicates a close frame.
	ControlClose ControlType = 2
)

// String returns the control type name.
func (c ControlType) String() string {
	switch c {
	case ControlPing:
		return "PING"
	case ControlPong:
		return "PONG"
	case ControlClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Code is the close or status code (if applicable).
	Code *int `cbor:"2,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
