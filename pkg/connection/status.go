package connection

// Status is the connection manager's lifecycle state.
type Status uint8

const (
	// StatusDisconnected means no connection and none wanted.
	StatusDisconnected Status = iota

	// StatusConnecting means an attempt (initial or retry) is in progress.
	StatusConnecting

	// StatusConnected means the session is identified and commands dispatch.
	StatusConnected

	// StatusReconnecting means a retry is scheduled after a failure.
	StatusReconnecting

	// StatusError means the manager gave up; a fresh Connect is required.
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// accepting reports whether Call queues or dispatches in this status.
func (s Status) accepting() bool {
	return s == StatusConnecting || s == StatusConnected || s == StatusReconnecting
}
