// Package connection keeps one logical control connection to the mixer
// alive across transport churn.
//
// A Manager drives a transport.Transport through five states:
//
//	disconnected -> connecting -> connected
//	                    ^             |
//	                    |             v
//	                reconnecting <----+
//	                    |
//	                    v
//	                  error
//
// # Reconnection
//
// After a recoverable failure the manager waits Policy.Delay and tries
// again:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. After 5 consecutive failures: error state, user notified
//  5. Reset on successful identification
//
// Close code 4009 (authentication failed) skips the schedule, enters the
// error state and forgets the stored password. Codes 4010 and 4011 are
// treated as final as well.
//
// # Commands
//
// Call dispatches at once while connected. While connecting or
// reconnecting the command is queued and replayed in batches once the
// session is identified; commands that waited longer than StaleAfter fail
// with ErrCommandTimeout. Commands awaiting a response when the connection
// drops fail with ErrConnectionLost.
package connection
