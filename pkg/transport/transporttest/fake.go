// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/livedeck/livedeck-go/pkg/transport"
)

// ConnectFunc scripts the outcome of a Connect call. Returning nil lets the
// fake identify the session.
type ConnectFunc func(ctx context.Context, address, password string) error

// CallFunc scripts the response to a Call.
type CallFunc func(ctx context.Context, method string, params any) (json.RawMessage, error)

// Call records one request seen by the fake.
type Call struct {
	Method string
	Params any
}

// Fake is a scriptable transport. The zero value is not usable; call New.
type Fake struct {
	transport.Emitter

	mu          sync.Mutex
	connectFn   ConnectFunc
	callFn      CallFunc
	connected   bool
	connects    []string
	calls       []Call
	disconnects int
}

// New returns a Fake whose Connect succeeds and whose Call answers "{}".
func New() *Fake {
	return &Fake{}
}

// SetConnect scripts Connect.
func (f *Fake) SetConnect(fn ConnectFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectFn = fn
}

// SetCall scripts Call.
func (f *Fake) SetCall(fn CallFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callFn = fn
}

// Connect runs the scripted connect and, on success, emits Identified.
func (f *Fake) Connect(ctx context.Context, address, password string) error {
	f.mu.Lock()
	f.connects = append(f.connects, address)
	fn := f.connectFn
	f.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, address, password); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.Emit(transport.Event{Name: transport.EventIdentified})
	return nil
}

// Disconnect marks the fake disconnected without emitting anything.
func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

// Call records the request and runs the scripted response.
func (f *Fake) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Params: params})
	fn := f.callFn
	connected := f.connected
	f.mu.Unlock()

	if !connected {
		return nil, transport.ErrNotConnected
	}
	if fn != nil {
		return fn(ctx, method, params)
	}
	return json.RawMessage(`{}`), nil
}

// Drop simulates the mixer closing an established session with code.
func (f *Fake) Drop(code int) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.Emit(transport.Event{Name: transport.EventConnectionClosed, Code: code})
}

// Fail simulates a socket error on an established session.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.Emit(transport.Event{Name: transport.EventConnectionError, Err: err})
}

// Push emits a mixer event with a JSON payload.
func (f *Fake) Push(name string, data any) {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	f.Emit(transport.Event{Name: name, Data: raw})
}

// Connected reports whether the fake considers itself connected.
func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Connects returns the addresses of every Connect call.
func (f *Fake) Connects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.connects...)
}

// Calls returns every recorded request.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Methods returns the method names of every recorded request.
func (f *Fake) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}

// Disconnects returns how many times Disconnect was called.
func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

var _ transport.Transport = (*Fake)(nil)
