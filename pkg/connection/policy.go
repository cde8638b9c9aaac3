package connection

import (
	"math"
	"math/rand/v2"
	"time"
)

// Reconnection defaults.
const (
	// DefaultMinDelay is the delay before the first reconnect attempt.
	DefaultMinDelay = 1 * time.Second

	// DefaultMaxDelay caps the delay between attempts.
	DefaultMaxDelay = 30 * time.Second

	// DefaultMultiplier is the factor by which the delay grows per attempt.
	DefaultMultiplier = 2.0

	// DefaultMaxAttempts is the number of consecutive failed attempts after
	// which the manager gives up and enters the error state.
	DefaultMaxAttempts = 5
)

// Policy computes reconnect delays and the retry ceiling.
type Policy struct {
	MinDelay   time.Duration `yaml:"min_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Multiplier float64       `yaml:"multiplier"`

	// Jitter adds up to Jitter*delay of random extra wait. Zero keeps the
	// schedule deterministic.
	Jitter float64 `yaml:"jitter"`

	// MaxAttempts is the retry ceiling. Negative means retry forever.
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultPolicy returns 1s, 2s, 4s, ... capped at 30s, five attempts, no jitter.
func DefaultPolicy() Policy {
	return Policy{
		MinDelay:    DefaultMinDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		MaxAttempts: DefaultMaxAttempts,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultMinDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.MinDelay {
		p.MaxDelay = p.MinDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// Delay returns the wait before attempt n (1-based): MinDelay *
// Multiplier^(n-1), capped at MaxDelay, plus jitter.
func (p Policy) Delay(attempt int) time.Duration {
	return p.addJitter(p.BaseDelay(attempt))
}

// BaseDelay is Delay without jitter.
func (p Policy) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.MinDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Exhausted reports whether failures has reached the retry ceiling.
func (p Policy) Exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}

// Sequence returns the base delays of every attempt up to the ceiling, or
// up to the first capped delay when retries are unlimited.
func (p Policy) Sequence() []time.Duration {
	var seq []time.Duration
	for n := 1; ; n++ {
		d := p.BaseDelay(n)
		seq = append(seq, d)
		if p.MaxAttempts > 0 && n >= p.MaxAttempts {
			return seq
		}
		if p.MaxAttempts <= 0 && d >= p.MaxDelay {
			return seq
		}
	}
}

func (p Policy) addJitter(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*p.Jitter*rand.Float64())
}
