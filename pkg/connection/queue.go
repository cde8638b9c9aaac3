package connection

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// command is one Call waiting for, or undergoing, dispatch.
type command struct {
	id         uint64
	method     string
	params     any
	ctx        context.Context
	enqueuedAt time.Time

	once sync.Once
	done chan struct{}
	data json.RawMessage
	err  error
}

func newCommand(ctx context.Context, id uint64, method string, params any, now time.Time) *command {
	return &command{
		id:         id,
		method:     method,
		params:     params,
		ctx:        ctx,
		enqueuedAt: now,
		done:       make(chan struct{}),
	}
}

// settle resolves the command. Only the first call has effect; it reports
// whether this call was the one.
func (c *command) settle(data json.RawMessage, err error) bool {
	settled := false
	c.once.Do(func() {
		c.data = data
		c.err = err
		close(c.done)
		settled = true
	})
	return settled
}

func (c *command) settled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// result blocks until the command is settled.
func (c *command) result() (json.RawMessage, error) {
	<-c.done
	return c.data, c.err
}

// commandQueue is a FIFO of commands waiting for a connection. It is
// guarded by the manager's mutex.
type commandQueue struct {
	items []*command
}

func (q *commandQueue) push(c *command) {
	q.items = append(q.items, c)
}

func (q *commandQueue) len() int {
	return len(q.items)
}

// drain removes and returns every queued command in order.
func (q *commandQueue) drain() []*command {
	items := q.items
	q.items = nil
	return items
}

// prepend puts cmds back at the head, ahead of anything queued since.
func (q *commandQueue) prepend(cmds []*command) {
	q.items = append(slices.Clone(cmds), q.items...)
}

// remove deletes the command with id and reports whether it was queued.
func (q *commandQueue) remove(id uint64) bool {
	for i, c := range q.items {
		if c.id == id {
			q.items = slices.Delete(q.items, i, i+1)
			return true
		}
	}
	return false
}

// splitStale separates commands older than maxAge from the rest, keeping order.
func splitStale(cmds []*command, now time.Time, maxAge time.Duration) (live, stale []*command) {
	for _, c := range cmds {
		if now.Sub(c.enqueuedAt) > maxAge {
			stale = append(stale, c)
			continue
		}
		live = append(live, c)
	}
	return live, stale
}

// batches splits cmds into consecutive groups of at most size.
func batches(cmds []*command, size int) [][]*command {
	if size < 1 {
		size = 1
	}
	var out [][]*command
	for start := 0; start < len(cmds); start += size {
		out = append(out, cmds[start:min(start+size, len(cmds))])
	}
	return out
}
