package connection

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusListeners(t *testing.T) {
	t.Run("DeliversInOrder", func(t *testing.T) {
		l := newStatusListeners(slog.Default())
		var got []Status
		l.add(func(s Status) { got = append(got, s) })

		l.enqueue(StatusConnecting)
		l.enqueue(StatusConnected)
		l.flush()
		l.flush()

		assert.Equal(t, []Status{StatusConnecting, StatusConnected}, got)
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		l := newStatusListeners(slog.Default())
		calls := 0
		unsub := l.add(func(Status) { calls++ })

		l.enqueue(StatusConnecting)
		l.flush()
		unsub()
		unsub()
		l.enqueue(StatusConnected)
		l.flush()

		assert.Equal(t, 1, calls)
		assert.Equal(t, 0, l.count())
	})

	t.Run("PanicDoesNotStopOthers", func(t *testing.T) {
		l := newStatusListeners(slog.Default())
		var got []Status
		l.add(func(Status) { panic("boom") })
		l.add(func(s Status) { got = append(got, s) })

		l.enqueue(StatusError)
		assert.NotPanics(t, l.flush)

		assert.Equal(t, []Status{StatusError}, got)
	})

	t.Run("ReentrantEnqueue", func(t *testing.T) {
		l := newStatusListeners(slog.Default())
		var got []Status
		l.add(func(s Status) {
			got = append(got, s)
			if s == StatusConnecting {
				// A transition triggered from inside a listener is delivered
				// after the current one, by the same drain.
				l.enqueue(StatusConnected)
				l.flush()
			}
		})

		l.enqueue(StatusConnecting)
		l.flush()

		assert.Equal(t, []Status{StatusConnecting, StatusConnected}, got)
	})

	t.Run("ConcurrentFlush", func(t *testing.T) {
		l := newStatusListeners(slog.Default())
		var mu sync.Mutex
		count := 0
		l.add(func(Status) {
			mu.Lock()
			count++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.enqueue(StatusConnected)
				l.flush()
			}()
		}
		wg.Wait()
		l.flush()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 20, count)
	})
}
