// Package transport speaks the obs-websocket v5 protocol to the mixer.
//
// The Transport interface is what the connection manager drives: a single
// connection that is opened with an address and password, carries
// request/response calls, and emits named events. Client is the
// implementation over gorilla/websocket.
//
// # Protocol
//
//	┌────────────────────────────────┐
//	│  Request(6) / Response(7)      │
//	│  Event(5)                      │
//	├────────────────────────────────┤
//	│  Hello(0) → Identify(1) →      │
//	│  Identified(2)                 │
//	├────────────────────────────────┤
//	│  JSON text frames              │
//	├────────────────────────────────┤
//	│  WebSocket (obswebsocket.json) │
//	└────────────────────────────────┘
//
// # Authentication
//
// When Hello carries a challenge, Identify answers with
//
//	base64(sha256(base64(sha256(password + salt)) + challenge))
//
// A wrong password makes the mixer close the socket with code 4009.
//
// # Lifecycle Events
//
// Besides mixer events, every Transport emits:
//   - Identified once a session is ready, ahead of anything read from it
//     (Connect returns after it)
//   - ConnectionClosed with the close code when an established session ends
//   - ConnectionError when the socket fails without a close frame
//
// Failures during the handshake are returned from Connect instead of emitted.
//
// # Keep-Alive
//
// Liveness is checked with websocket ping frames:
//   - Ping interval: 20 seconds
//   - Pong timeout: 5 seconds
//   - Max missed pongs: 3
package transport
