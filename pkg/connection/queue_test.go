package connection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(cmds []*command) []uint64 {
	out := make([]uint64, len(cmds))
	for i, c := range cmds {
		out[i] = c.id
	}
	return out
}

func TestCommandSettle(t *testing.T) {
	c := newCommand(context.Background(), 1, "GetVersion", nil, time.Now())
	assert.False(t, c.settled())

	assert.True(t, c.settle(json.RawMessage(`{"a":1}`), nil))
	assert.False(t, c.settle(nil, errors.New("late")))
	assert.True(t, c.settled())

	data, err := c.result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestCommandQueue(t *testing.T) {
	now := time.Now()
	mk := func(id uint64) *command {
		return newCommand(context.Background(), id, "m", nil, now)
	}

	t.Run("FIFO", func(t *testing.T) {
		var q commandQueue
		q.push(mk(1))
		q.push(mk(2))
		q.push(mk(3))

		assert.Equal(t, 3, q.len())
		assert.Equal(t, []uint64{1, 2, 3}, ids(q.drain()))
		assert.Equal(t, 0, q.len())
	})

	t.Run("Remove", func(t *testing.T) {
		var q commandQueue
		q.push(mk(1))
		q.push(mk(2))
		q.push(mk(3))

		assert.True(t, q.remove(2))
		assert.False(t, q.remove(2))
		assert.Equal(t, []uint64{1, 3}, ids(q.drain()))
	})

	t.Run("PrependKeepsOrder", func(t *testing.T) {
		var q commandQueue
		q.push(mk(4))
		q.prepend([]*command{mk(1), mk(2)})

		assert.Equal(t, []uint64{1, 2, 4}, ids(q.drain()))
	})
}

func TestSplitStale(t *testing.T) {
	now := time.Now()
	cmds := []*command{
		newCommand(context.Background(), 1, "a", nil, now.Add(-40*time.Second)),
		newCommand(context.Background(), 2, "b", nil, now.Add(-5*time.Second)),
		newCommand(context.Background(), 3, "c", nil, now.Add(-30*time.Second)),
		newCommand(context.Background(), 4, "d", nil, now.Add(-31*time.Second)),
	}

	live, stale := splitStale(cmds, now, 30*time.Second)

	assert.Equal(t, []uint64{2, 3}, ids(live))
	assert.Equal(t, []uint64{1, 4}, ids(stale))
}

func TestBatches(t *testing.T) {
	var cmds []*command
	for i := range 23 {
		cmds = append(cmds, newCommand(context.Background(), uint64(i+1), "m", nil, time.Now()))
	}

	got := batches(cmds, 10)

	require.Len(t, got, 3)
	assert.Len(t, got[0], 10)
	assert.Len(t, got[1], 10)
	assert.Len(t, got[2], 3)
	assert.Equal(t, uint64(11), got[1][0].id)

	assert.Empty(t, batches(nil, 10))
	assert.Len(t, batches(cmds[:2], 0), 2, "size below one sends singly")
}
