package transport

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"
)

// Keep-alive defaults.
const (
	DefaultPingInterval   = 20 * time.Second
	DefaultPongTimeout    = 5 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures websocket ping monitoring.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings. Zero disables keep-alive.
	PingInterval time.Duration `yaml:"ping_interval"`

	// PongTimeout is how long a ping may stay unanswered before it counts as missed.
	PongTimeout time.Duration `yaml:"pong_timeout"`

	// MaxMissedPongs is the number of missed pongs before the session is dropped.
	MaxMissedPongs int `yaml:"max_missed_pongs"`
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay is the longest time a dead connection can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// KeepAlive sends sequenced pings and reports a timeout after too many
// unanswered ones.
type KeepAlive struct {
	config KeepAliveConfig

	sendPing  func(seq uint32) error
	onTimeout func()

	sequence atomic.Uint32

	mu          sync.Mutex
	running     bool
	missed      int
	pending     uint32
	hasPending  bool
	lastPing    time.Time
	lastLatency time.Duration
	stopCh      chan struct{}
	pongCh      chan uint32
}

// NewKeepAlive creates a keep-alive monitor. Zero fields of config take defaults.
func NewKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	if config.PongTimeout <= 0 {
		config.PongTimeout = DefaultPongTimeout
	}
	if config.MaxMissedPongs <= 0 {
		config.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return &KeepAlive{
		config:    config,
		sendPing:  sendPing,
		onTimeout: onTimeout,
		pongCh:    make(chan uint32, 1),
	}
}

// Start begins monitoring. It is a no-op when already running or when the
// ping interval is zero.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running || ka.config.PingInterval <= 0 {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.stopCh = make(chan struct{})
	stop := ka.stopCh
	ka.mu.Unlock()

	go ka.loop(ctx, stop)
}

// Stop ends monitoring. Safe to call more than once.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
}

// IsRunning reports whether monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// PongReceived records the pong for seq.
func (ka *KeepAlive) PongReceived(seq uint32) {
	select {
	case ka.pongCh <- seq:
	default:
	}
}

// Latency returns the round trip of the last answered ping.
func (ka *KeepAlive) Latency() time.Duration {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.lastLatency
}

// Missed returns the current count of consecutive missed pongs.
func (ka *KeepAlive) Missed() int {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.missed
}

// Sequence returns the sequence number of the last ping sent.
func (ka *KeepAlive) Sequence() uint32 {
	return ka.sequence.Load()
}

func (ka *KeepAlive) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if ka.tick() {
				ka.mu.Lock()
				if ka.running {
					ka.running = false
					close(ka.stopCh)
				}
				ka.mu.Unlock()
				if ka.onTimeout != nil {
					ka.onTimeout()
				}
				return
			}
		case seq := <-ka.pongCh:
			ka.pong(seq)
		}
	}
}

// tick accounts for an unanswered ping and sends the next one. It returns
// true once the missed-pong limit is reached.
func (ka *KeepAlive) tick() bool {
	ka.mu.Lock()
	if ka.hasPending && time.Since(ka.lastPing) >= ka.config.PongTimeout {
		ka.missed++
		ka.hasPending = false
		if ka.missed >= ka.config.MaxMissedPongs {
			ka.mu.Unlock()
			return true
		}
	}
	seq := ka.sequence.Add(1)
	ka.pending = seq
	ka.hasPending = true
	ka.lastPing = time.Now()
	ka.mu.Unlock()

	// A failed send surfaces as a missed pong on a later tick.
	_ = ka.sendPing(seq)
	return false
}

func (ka *KeepAlive) pong(seq uint32) {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if ka.hasPending && seq == ka.pending {
		ka.lastLatency = time.Since(ka.lastPing)
		ka.hasPending = false
		ka.missed = 0
	}
}

func encodePingPayload(seq uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, seq)
	return b
}

func decodePingPayload(data string) (uint32, bool) {
	if len(data) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32([]byte(data)), true
}
