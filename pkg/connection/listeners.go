package connection

import (
	"log/slog"
	"slices"
	"sync"
)

// statusListeners fans status changes out to subscribers.
//
// Transitions are enqueued while the manager lock is held and delivered by
// flush after it is released. Only one goroutine drains at a time, so every
// listener sees each transition once and in transition order, and a listener
// may call back into the manager.
type statusListeners struct {
	logger *slog.Logger

	mu       sync.Mutex
	next     uint64
	fns      map[uint64]func(Status)
	pending  []Status
	draining bool
}

func newStatusListeners(logger *slog.Logger) *statusListeners {
	return &statusListeners{
		logger: logger,
		fns:    make(map[uint64]func(Status)),
	}
}

func (l *statusListeners) add(fn func(Status)) func() {
	l.mu.Lock()
	l.next++
	id := l.next
	l.fns[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *statusListeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

func (l *statusListeners) enqueue(s Status) {
	l.mu.Lock()
	l.pending = append(l.pending, s)
	l.mu.Unlock()
}

func (l *statusListeners) flush() {
	l.mu.Lock()
	if l.draining {
		l.mu.Unlock()
		return
	}
	l.draining = true
	for len(l.pending) > 0 {
		s := l.pending[0]
		l.pending = l.pending[1:]
		fns := l.snapshot()
		l.mu.Unlock()

		for _, fn := range fns {
			l.call(fn, s)
		}

		l.mu.Lock()
	}
	l.draining = false
	l.mu.Unlock()
}

// snapshot returns listeners in registration order. Caller holds mu.
func (l *statusListeners) snapshot() []func(Status) {
	ids := make([]uint64, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Status), len(ids))
	for i, id := range ids {
		fns[i] = l.fns[id]
	}
	return fns
}

func (l *statusListeners) call(fn func(Status), s Status) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("status listener panicked", "status", s.String(), "panic", r)
		}
	}()
	fn(s)
}
