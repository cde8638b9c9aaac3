package connection

import (
	"errors"
	"fmt"

	"github.com/livedeck/livedeck-go/pkg/transport"
)

// Connection errors.
var (
	// ErrTransport wraps recoverable socket and protocol failures.
	ErrTransport = errors.New("transport failure")

	// ErrAuthFailed is the mixer rejecting the password (close code 4009).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUnrecoverable is a close code that retrying cannot fix.
	ErrUnrecoverable = errors.New("unrecoverable close")

	// ErrCommandTimeout rejects queued commands older than the stale threshold.
	ErrCommandTimeout = errors.New("command expired while waiting for connection")

	ErrNotConnected     = errors.New("not connected")
	ErrConnectionLost   = errors.New("connection lost")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	ErrDisconnected     = errors.New("disconnected")
	ErrNoConnectOptions = errors.New("no stored connect options")
)

// CommandRejectedError is a command the mixer answered with a failed status.
type CommandRejectedError struct {
	Method  string
	Code    int
	Comment string
	Err     error
}

func (e *CommandRejectedError) Error() string {
	if e.Comment != "" {
		return fmt.Sprintf("%s rejected (%d): %s", e.Method, e.Code, e.Comment)
	}
	return fmt.Sprintf("%s rejected (%d)", e.Method, e.Code)
}

func (e *CommandRejectedError) Unwrap() error {
	return e.Err
}

// closeCause maps a close code to the error that ends reconnection, or nil
// when the code is recoverable.
func closeCause(code int) error {
	switch code {
	case transport.CloseAuthenticationFailed:
		return ErrAuthFailed
	case transport.CloseUnsupportedRPCVersion, transport.CloseSessionInvalidated:
		return fmt.Errorf("%w: %s", ErrUnrecoverable, transport.CloseCodeText(code))
	default:
		return nil
	}
}

// closeCode extracts the close code carried by err, or 0.
func closeCode(err error) int {
	var ce *transport.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}
