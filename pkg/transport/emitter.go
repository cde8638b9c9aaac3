package transport

import (
	"log/slog"
	"sync"
)

type listener struct {
	id    ListenerID
	event string
	fn    Handler
}

// Emitter is a registry of event handlers keyed by ListenerID.
// Handlers for one event run in registration order. The zero value is ready
// to use.
type Emitter struct {
	mu        sync.RWMutex
	next      ListenerID
	listeners []listener
}

// On registers fn for event and returns its handle.
func (e *Emitter) On(event string, fn Handler) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next++
	e.listeners = append(e.listeners, listener{id: e.next, event: event, fn: fn})
	return e.next
}

// Off removes the handler registered under id.
func (e *Emitter) Off(id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Count returns how many handlers are registered for event.
func (e *Emitter) Count(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, l := range e.listeners {
		if l.event == event {
			n++
		}
	}
	return n
}

// Emit calls every handler registered for ev.Name or AllEvents.
// A panicking handler is logged and does not stop the others.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	var fns []Handler
	for _, l := range e.listeners {
		if l.event == ev.Name || l.event == AllEvents {
			fns = append(fns, l.fn)
		}
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		callHandler(fn, ev)
	}
}

func callHandler(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", ev.Name, "panic", r)
		}
	}()
	fn(ev)
}
