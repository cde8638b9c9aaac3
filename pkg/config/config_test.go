package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livedeck/livedeck-go/pkg/connection"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livedeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadAndValidate("")
		require.NoError(t, err)

		assert.Equal(t, DefaultAddress, cfg.Connection.Address)
		assert.Equal(t, connection.DefaultPolicy(), cfg.Reconnect)
		assert.Equal(t, 30*time.Second, cfg.Queue.StaleAfter)
		assert.Equal(t, 10, cfg.Queue.ReplayBatchSize)
		assert.Equal(t, 2*time.Second, cfg.Cache.TTL)
		assert.Equal(t, 20*time.Second, cfg.Transport.KeepAlive.PingInterval)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "_obs-websocket._tcp", cfg.Discovery.Service)
	})

	t.Run("FileOverrides", func(t *testing.T) {
		path := writeConfig(t, `
connection:
  address: wss://studio.example:4455
  password: hunter2
reconnect:
  min_delay: 500ms
  max_delay: 10s
  max_attempts: 8
queue:
  stale_after: 1m
  replay_batch_size: 4
cache:
  ttl: 250ms
transport:
  keepalive:
    ping_interval: 10s
log:
  level: debug
  format: json
`)

		cfg, err := LoadAndValidate(path)
		require.NoError(t, err)

		assert.Equal(t, "wss://studio.example:4455", cfg.Connection.Address)
		assert.Equal(t, "hunter2", cfg.Connection.ResolvedPassword())
		assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.MinDelay)
		assert.Equal(t, 10*time.Second, cfg.Reconnect.MaxDelay)
		assert.Equal(t, 2.0, cfg.Reconnect.Multiplier)
		assert.Equal(t, 8, cfg.Reconnect.MaxAttempts)
		assert.Equal(t, time.Minute, cfg.Queue.StaleAfter)
		assert.Equal(t, 4, cfg.Queue.ReplayBatchSize)
		assert.Equal(t, 250*time.Millisecond, cfg.Cache.TTL)
		assert.Equal(t, 10*time.Second, cfg.Transport.KeepAlive.PingInterval)
		assert.Equal(t, 5*time.Second, cfg.Transport.KeepAlive.PongTimeout)

		cc := cfg.ControlConfig()
		assert.Equal(t, cfg.Reconnect, cc.Connection.Policy)
		assert.Equal(t, 4, cc.Connection.ReplayBatchSize)
		assert.Equal(t, 250*time.Millisecond, cc.CacheTTL)
		assert.Equal(t, 10*time.Second, cc.Transport.KeepAlive.PingInterval)
	})

	t.Run("PasswordFromEnv", func(t *testing.T) {
		t.Setenv("LIVEDECK_TEST_PW", "from-env")
		path := writeConfig(t, `
connection:
  password_env: LIVEDECK_TEST_PW
`)

		cfg, err := LoadAndValidate(path)
		require.NoError(t, err)

		assert.Empty(t, cfg.Connection.Password)
		assert.Equal(t, "from-env", cfg.Connection.ResolvedPassword())
	})

	t.Run("ExpandsEnv", func(t *testing.T) {
		t.Setenv("LIVEDECK_TEST_HOST", "10.0.0.7")
		path := writeConfig(t, `
connection:
  address: ws://${LIVEDECK_TEST_HOST}:4455
`)

		cfg, err := LoadAndValidate(path)
		require.NoError(t, err)

		assert.Equal(t, "ws://10.0.0.7:4455", cfg.Connection.Address)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadAndValidate(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("BadYAML", func(t *testing.T) {
		_, err := LoadAndValidate(writeConfig(t, "connection: ["))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config yaml")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"http address", func(c *Config) { c.Connection.Address = "http://host:4455" }, "ws:// or wss://"},
		{"no host", func(c *Config) { c.Connection.Address = "ws://" }, "no host"},
		{"max below min", func(c *Config) { c.Reconnect.MaxDelay = 100 * time.Millisecond }, "reconnect.max_delay"},
		{"multiplier", func(c *Config) { c.Reconnect.Multiplier = 0.5 }, "reconnect.multiplier"},
		{"jitter", func(c *Config) { c.Reconnect.Jitter = 2 }, "reconnect.jitter"},
		{"batch size", func(c *Config) { c.Queue.ReplayBatchSize = -1 }, "queue.replay_batch_size"},
		{"stale after", func(c *Config) { c.Queue.StaleAfter = -time.Second }, "queue.stale_after"},
		{"missed pongs", func(c *Config) { c.Transport.KeepAlive.MaxMissedPongs = -1 }, "max_missed_pongs"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("UnlimitedRetries", func(t *testing.T) {
		cfg := Default()
		cfg.Reconnect.MaxAttempts = -1
		assert.NoError(t, cfg.Validate())
	})
}
