// Package log provides protocol capture for the mixer connection.
//
// Capture is separate from operational logging (slog). It records a
// machine-readable trace of everything that crossed the websocket plus the
// connection manager's status changes, for debugging a show after the fact.
//
// # Basic Usage
//
//	// Console during development
//	capture := log.NewSlogAdapter(slog.Default())
//
//	// Binary file
//	capture, _ := log.NewFileLogger("/var/log/livedeck/session.dlog")
//
//	// Both
//	capture := log.NewMultiLogger(slogAdapter, fileLogger)
//
// # Event Types
//
//   - MessageEvent: handshake, requests, responses and mixer events
//   - ControlEvent: websocket ping/pong/close frames
//   - StateChangeEvent: connection status and session lifecycle
//   - ErrorEventData: transport and request failures
//
// # File Format
//
// Capture files are concatenated CBOR events with the .dlog extension.
// The livedeck-log tool views and summarizes them.
package log
