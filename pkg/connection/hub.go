package connection

import (
	"sync"

	"github.com/livedeck/livedeck-go/pkg/transport"
)

// Hub is the single place mixer events are subscribed to.
//
// Internal listeners (connection lifecycle, cache invalidation) are
// installed once and cannot be removed through Off; external subscribers
// come and go without affecting them.
type Hub struct {
	t transport.Transport

	mu       sync.Mutex
	internal map[transport.ListenerID]string
}

// NewHub wraps the transport's event registry.
func NewHub(t transport.Transport) *Hub {
	return &Hub{
		t:        t,
		internal: make(map[transport.ListenerID]string),
	}
}

// On subscribes fn to event and returns a handle for Off.
func (h *Hub) On(event string, fn transport.Handler) transport.ListenerID {
	return h.t.On(event, fn)
}

// Off removes an external subscription. Internal listeners are left alone.
func (h *Hub) Off(id transport.ListenerID) {
	h.mu.Lock()
	_, pinned := h.internal[id]
	h.mu.Unlock()
	if pinned {
		return
	}
	h.t.Off(id)
}

// Subscribe is On returning an idempotent unsubscribe function.
func (h *Hub) Subscribe(event string, fn transport.Handler) func() {
	id := h.On(event, fn)
	var once sync.Once
	return func() {
		once.Do(func() { h.Off(id) })
	}
}

// Install registers a permanent internal listener.
func (h *Hub) Install(event string, fn transport.Handler) {
	id := h.t.On(event, fn)
	h.mu.Lock()
	h.internal[id] = event
	h.mu.Unlock()
}

// Internal returns the events with internal listeners, one entry per listener.
func (h *Hub) Internal() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]string, 0, len(h.internal))
	for _, ev := range h.internal {
		events = append(events, ev)
	}
	return events
}
