package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		p := DefaultPolicy()

		assert.Equal(t, []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
		}, p.Sequence())
	})

	t.Run("CappedAtMax", func(t *testing.T) {
		p := DefaultPolicy()

		assert.Equal(t, 16*time.Second, p.Delay(5))
		assert.Equal(t, 30*time.Second, p.Delay(6))
		assert.Equal(t, 30*time.Second, p.Delay(50))
		assert.Equal(t, 30*time.Second, p.Delay(5000))
	})

	t.Run("Monotonic", func(t *testing.T) {
		p := DefaultPolicy()
		prev := time.Duration(0)
		for n := 1; n <= 20; n++ {
			d := p.Delay(n)
			assert.GreaterOrEqual(t, d, prev, "attempt %d", n)
			assert.LessOrEqual(t, d, p.MaxDelay)
			prev = d
		}
	})

	t.Run("AttemptBelowOne", func(t *testing.T) {
		p := DefaultPolicy()
		assert.Equal(t, time.Second, p.BaseDelay(0))
		assert.Equal(t, time.Second, p.BaseDelay(-3))
	})

	t.Run("Jitter", func(t *testing.T) {
		p := DefaultPolicy()
		p.Jitter = 0.25

		for range 50 {
			d := p.Delay(1)
			assert.GreaterOrEqual(t, d, time.Second)
			assert.LessOrEqual(t, d, 1250*time.Millisecond)
		}
	})

	t.Run("Exhausted", func(t *testing.T) {
		p := DefaultPolicy()
		assert.False(t, p.Exhausted(4))
		assert.True(t, p.Exhausted(5))
		assert.True(t, p.Exhausted(6))

		p.MaxAttempts = -1
		assert.False(t, p.Exhausted(1000))
	})

	t.Run("UnlimitedSequenceStopsAtCap", func(t *testing.T) {
		p := Policy{MinDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2, MaxAttempts: -1}

		assert.Equal(t, []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			5 * time.Second,
		}, p.Sequence())
	})

	t.Run("WithDefaults", func(t *testing.T) {
		p := Policy{MaxDelay: 100 * time.Millisecond, Multiplier: 0.5, Jitter: -1}.withDefaults()

		assert.Equal(t, DefaultMinDelay, p.MinDelay)
		assert.Equal(t, DefaultMinDelay, p.MaxDelay, "max is raised to min")
		assert.Equal(t, DefaultMultiplier, p.Multiplier)
		assert.Equal(t, 0.0, p.Jitter)
		assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	})
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{StatusError, "error"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}
