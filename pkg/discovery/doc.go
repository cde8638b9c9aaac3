// Package discovery finds mixers on the local network with mDNS/DNS-SD.
//
// Mixers, or a small responder next to them, advertise the obs-websocket
// endpoint as a DNS-SD service (by default _obs-websocket._tcp). The
// instance name is the label shown to the operator. Optional TXT records:
//
//   - path: websocket path appended to the URL (default "/")
//   - tls: "1" when the endpoint expects wss://
//   - auth: "1" when a password is required
//
// A mixer reachable on several interfaces is reported once, with the
// addresses of every interface merged.
package discovery
