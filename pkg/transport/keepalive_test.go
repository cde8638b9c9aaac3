package transport

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeepAliveConfig(t *testing.T) {
	config := DefaultKeepAliveConfig()

	if config.PingInterval != DefaultPingInterval {
		t.Errorf("PingInterval = %v, want %v", config.PingInterval, DefaultPingInterval)
	}
	if config.PongTimeout != DefaultPongTimeout {
		t.Errorf("PongTimeout = %v, want %v", config.PongTimeout, DefaultPongTimeout)
	}
	if config.MaxMissedPongs != DefaultMaxMissedPongs {
		t.Errorf("MaxMissedPongs = %d, want %d", config.MaxMissedPongs, DefaultMaxMissedPongs)
	}

	if got, want := config.DetectionDelay(), 65*time.Second; got != want {
		t.Errorf("DetectionDelay = %v, want %v", got, want)
	}
}

func TestKeepAliveSendsPings(t *testing.T) {
	var pings atomic.Int32
	var lastSeq atomic.Uint32

	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    10 * time.Millisecond,
		MaxMissedPongs: 3,
	}, func(seq uint32) error {
		pings.Add(1)
		lastSeq.Store(seq)
		return nil
	}, func() {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ka.Start(ctx)
	defer ka.Stop()

	deadline := time.Now().Add(time.Second)
	for pings.Load() < 2 && time.Now().Before(deadline) {
		ka.PongReceived(lastSeq.Load())
		time.Sleep(5 * time.Millisecond)
	}

	if pings.Load() < 2 {
		t.Errorf("expected at least 2 pings, got %d", pings.Load())
	}
	if ka.Sequence() == 0 {
		t.Error("Sequence should advance after a ping")
	}
}

func TestKeepAliveTimeout(t *testing.T) {
	timedOut := make(chan struct{})

	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:   10 * time.Millisecond,
		PongTimeout:    5 * time.Millisecond,
		MaxMissedPongs: 2,
	}, func(uint32) error { return nil }, func() { close(timedOut) })

	ka.Start(context.Background())

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("expected timeout to be called")
	}

	if ka.IsRunning() {
		t.Error("keep-alive should stop itself after a timeout")
	}
	ka.Stop()
}

func TestKeepAlivePongResetsMissed(t *testing.T) {
	var lastSeq atomic.Uint32

	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    10 * time.Millisecond,
		MaxMissedPongs: 1000,
	}, func(seq uint32) error {
		lastSeq.Store(seq)
		return nil
	}, func() {
		t.Error("timeout should not be called")
	})

	ka.Start(context.Background())
	defer ka.Stop()

	// Let a few pings go unanswered.
	deadline := time.Now().Add(time.Second)
	for ka.Missed() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ka.Missed() == 0 {
		t.Fatal("expected missed pongs to accumulate")
	}

	// Answer until a pong lands on a pending ping.
	deadline = time.Now().Add(time.Second)
	for ka.Missed() != 0 && time.Now().Before(deadline) {
		ka.PongReceived(lastSeq.Load())
		time.Sleep(2 * time.Millisecond)
	}
	if ka.Missed() != 0 {
		t.Errorf("Missed() = %d after pong, want 0", ka.Missed())
	}
}

func TestKeepAliveStartStop(t *testing.T) {
	ka := NewKeepAlive(DefaultKeepAliveConfig(), func(uint32) error { return nil }, func() {})

	if ka.IsRunning() {
		t.Error("should not be running initially")
	}

	ka.Start(context.Background())
	if !ka.IsRunning() {
		t.Error("should be running after Start")
	}
	ka.Start(context.Background())
	if !ka.IsRunning() {
		t.Error("should still be running")
	}

	ka.Stop()
	if ka.IsRunning() {
		t.Error("should not be running after Stop")
	}
	ka.Stop()
}

func TestKeepAliveDisabled(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{}, func(uint32) error { return nil }, func() {})
	ka.Start(context.Background())
	if ka.IsRunning() {
		t.Error("zero ping interval should disable keep-alive")
	}
}

func TestPingPayload(t *testing.T) {
	seq, ok := decodePingPayload(string(encodePingPayload(0xDEADBEEF)))
	if !ok || seq != 0xDEADBEEF {
		t.Errorf("decode = (%x, %v)", seq, ok)
	}
	if _, ok := decodePingPayload("abc"); ok {
		t.Error("short payload should not decode")
	}
}
