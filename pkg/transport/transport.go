package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Lifecycle event names emitted by every Transport.
const (
	EventIdentified       = "Identified"
	EventConnectionClosed = "ConnectionClosed"
	EventConnectionError  = "ConnectionError"

	// AllEvents registers a handler for every emitted event.
	AllEvents = "*"
)

// Close codes sent by obs-websocket.
const (
	CloseNormal                = 1000
	CloseGoingAway             = 1001
	CloseAbnormal              = 1006
	CloseUnknownReason         = 4000
	CloseMessageDecodeError    = 4002
	CloseMissingDataField      = 4003
	CloseInvalidDataFieldType  = 4004
	CloseInvalidDataFieldValue = 4005
	CloseUnknownOpCode         = 4006
	CloseNotIdentified         = 4007
	CloseAlreadyIdentified     = 4008
	CloseAuthenticationFailed  = 4009
	CloseUnsupportedRPCVersion = 4010
	CloseSessionInvalidated    = 4011
	CloseUnsupportedFeature    = 4012
)

// Transport errors.
var (
	ErrNotConnected      = errors.New("transport not connected")
	ErrAlreadyConnected  = errors.New("transport already connected")
	ErrClosed            = errors.New("connection closed")
	ErrRequestTimeout    = errors.New("request timed out")
	ErrKeepAliveTimeout  = errors.New("keep-alive timeout")
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// Event is a named notification from the transport.
type Event struct {
	// Name is the mixer event type or one of the lifecycle names.
	Name string

	// Data is the raw eventData object of mixer events.
	Data json.RawMessage

	// Code is the close code of EventConnectionClosed.
	Code int

	// Reason is the close reason of EventConnectionClosed.
	Reason string

	// Err is set for EventConnectionError.
	Err error
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.Name)
	}
	return json.Unmarshal(e.Data, v)
}

// Handler receives events. It runs on the transport's read goroutine.
type Handler func(Event)

// ListenerID identifies a registered handler.
type ListenerID uint64

// Transport is a single remote-command connection to the mixer.
type Transport interface {
	// Connect dials address and completes the handshake. It returns after
	// EventIdentified has been emitted.
	Connect(ctx context.Context, address, password string) error

	// Disconnect closes the connection. No lifecycle event is emitted for a
	// manual disconnect.
	Disconnect() error

	// Call sends a request and waits for its response data.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// On registers fn for the named event.
	On(event string, fn Handler) ListenerID

	// Off removes a handler. Unknown IDs are ignored.
	Off(id ListenerID)
}

// CloseError reports that the mixer closed the socket with a close code.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection closed with code %d", e.Code)
	}
	return fmt.Sprintf("connection closed with code %d: %s", e.Code, e.Reason)
}

// RequestError is a request the mixer answered with a failed status.
type RequestError struct {
	Method  string
	Code    int
	Comment string
}

func (e *RequestError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("request %s failed with status %d", e.Method, e.Code)
	}
	return fmt.Sprintf("request %s failed with status %d: %s", e.Method, e.Code, e.Comment)
}

// CloseCodeText returns a short description of an obs-websocket close code.
func CloseCodeText(code int) string {
	switch code {
	case CloseNormal:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseAbnormal:
		return "abnormal closure"
	case CloseUnknownReason:
		return "unknown reason"
	case CloseMessageDecodeError:
		return "message decode error"
	case CloseMissingDataField:
		return "missing data field"
	case CloseInvalidDataFieldType:
		return "invalid data field type"
	case CloseInvalidDataFieldValue:
		return "invalid data field value"
	case CloseUnknownOpCode:
		return "unknown op code"
	case CloseNotIdentified:
		return "not identified"
	case CloseAlreadyIdentified:
		return "already identified"
	case CloseAuthenticationFailed:
		return "authentication failed"
	case CloseUnsupportedRPCVersion:
		return "unsupported rpc version"
	case CloseSessionInvalidated:
		return "session invalidated"
	case CloseUnsupportedFeature:
		return "unsupported feature"
	default:
		return "unknown"
	}
}
