package config

import (
	"time"

	"github.com/livedeck/livedeck-go/pkg/connection"
	"github.com/livedeck/livedeck-go/pkg/statecache"
	"github.com/livedeck/livedeck-go/pkg/transport"
)

// Default values for optional configuration fields.
const (
	DefaultAddress          = "ws://127.0.0.1:4455"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultDiscoveryService = "_obs-websocket._tcp"
	DefaultDiscoveryDomain  = "local."
	DefaultDiscoveryTimeout = 3 * time.Second
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Connection.Address == "" {
		c.Connection.Address = DefaultAddress
	}

	if c.Reconnect.MinDelay == 0 {
		c.Reconnect.MinDelay = connection.DefaultMinDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = connection.DefaultMaxDelay
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = connection.DefaultMultiplier
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = connection.DefaultMaxAttempts
	}

	if c.Queue.StaleAfter == 0 {
		c.Queue.StaleAfter = connection.DefaultStaleAfter
	}
	if c.Queue.ReplayBatchSize == 0 {
		c.Queue.ReplayBatchSize = connection.DefaultReplayBatchSize
	}
	if c.Queue.AttemptTimeout == 0 {
		c.Queue.AttemptTimeout = connection.DefaultAttemptTimeout
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = statecache.DefaultTTL
	}

	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = transport.DefaultHandshakeTimeout
	}
	if c.Transport.RequestTimeout == 0 {
		c.Transport.RequestTimeout = transport.DefaultRequestTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = transport.DefaultWriteTimeout
	}
	if c.Transport.KeepAlive.PingInterval == 0 {
		c.Transport.KeepAlive.PingInterval = transport.DefaultPingInterval
	}
	if c.Transport.KeepAlive.PongTimeout == 0 {
		c.Transport.KeepAlive.PongTimeout = transport.DefaultPongTimeout
	}
	if c.Transport.KeepAlive.MaxMissedPongs == 0 {
		c.Transport.KeepAlive.MaxMissedPongs = transport.DefaultMaxMissedPongs
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Discovery.Service == "" {
		c.Discovery.Service = DefaultDiscoveryService
	}
	if c.Discovery.Domain == "" {
		c.Discovery.Domain = DefaultDiscoveryDomain
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = DefaultDiscoveryTimeout
	}
}
