// Package config loads the livedeck YAML configuration.
//
// Durations are written as Go duration strings ("2s", "500ms"). Omitted
// fields take the defaults in defaults.go. ${VAR} references are expanded
// from the environment before parsing.
package config

import (
	"os"
	"time"

	"github.com/livedeck/livedeck-go/pkg/connection"
	"github.com/livedeck/livedeck-go/pkg/control"
	"github.com/livedeck/livedeck-go/pkg/transport"
)

// Config is the root configuration.
type Config struct {
	Connection ConnectionConfig  `yaml:"connection"`
	Reconnect  connection.Policy `yaml:"reconnect"`
	Queue      QueueConfig       `yaml:"queue"`
	Cache      CacheConfig       `yaml:"cache"`
	Transport  TransportConfig   `yaml:"transport"`
	Capture    CaptureConfig     `yaml:"capture"`
	Log        LogConfig         `yaml:"log"`
	Discovery  DiscoveryConfig   `yaml:"discovery"`
}

// ConnectionConfig names the mixer to control.
type ConnectionConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`

	// PasswordEnv names an environment variable holding the password. It is
	// used when Password is empty.
	PasswordEnv string `yaml:"password_env"`

	// AutoConnect connects at startup.
	AutoConnect bool `yaml:"auto_connect"`
}

// QueueConfig tunes the outage command queue.
type QueueConfig struct {
	StaleAfter      time.Duration `yaml:"stale_after"`
	ReplayBatchSize int           `yaml:"replay_batch_size"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
}

// CacheConfig tunes the state cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// TransportConfig tunes the obs-websocket client.
type TransportConfig struct {
	HandshakeTimeout time.Duration             `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration             `yaml:"request_timeout"`
	WriteTimeout     time.Duration             `yaml:"write_timeout"`
	KeepAlive        transport.KeepAliveConfig `yaml:"keepalive"`
}

// CaptureConfig enables the protocol capture file.
type CaptureConfig struct {
	File string `yaml:"file"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DiscoveryConfig tunes mDNS browsing.
type DiscoveryConfig struct {
	Service string        `yaml:"service"`
	Domain  string        `yaml:"domain"`
	Timeout time.Duration `yaml:"timeout"`
}

// ResolvedPassword returns Password, or the value of PasswordEnv.
func (c ConnectionConfig) ResolvedPassword() string {
	if c.Password != "" || c.PasswordEnv == "" {
		return c.Password
	}
	return os.Getenv(c.PasswordEnv)
}

// ControlConfig converts the file settings into the component graph
// configuration.
func (c *Config) ControlConfig() control.Config {
	return control.Config{
		Connection: connection.Config{
			Policy:          c.Reconnect,
			StaleAfter:      c.Queue.StaleAfter,
			ReplayBatchSize: c.Queue.ReplayBatchSize,
			AttemptTimeout:  c.Queue.AttemptTimeout,
		},
		Transport: transport.Config{
			HandshakeTimeout:   c.Transport.HandshakeTimeout,
			RequestTimeout:     c.Transport.RequestTimeout,
			WriteTimeout:       c.Transport.WriteTimeout,
			KeepAlive:          c.Transport.KeepAlive,
			EventSubscriptions: transport.EventSubscriptionAll,
		},
		CacheTTL: c.Cache.TTL,
	}
}
