package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if err := validateAddress(c.Connection.Address); err != nil {
		return err
	}

	if c.Reconnect.MinDelay <= 0 {
		return errors.New("reconnect.min_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.MinDelay {
		return errors.New("reconnect.max_delay must be >= reconnect.min_delay")
	}
	if c.Reconnect.Multiplier < 1 {
		return errors.New("reconnect.multiplier must be >= 1")
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return fmt.Errorf("reconnect.jitter must be between 0 and 1, got %g", c.Reconnect.Jitter)
	}

	if c.Queue.StaleAfter <= 0 {
		return errors.New("queue.stale_after must be > 0")
	}
	if c.Queue.ReplayBatchSize < 1 {
		return errors.New("queue.replay_batch_size must be >= 1")
	}

	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must be >= 0")
	}

	if c.Transport.KeepAlive.PingInterval < 0 {
		return errors.New("transport.keepalive.ping_interval must be >= 0")
	}
	if c.Transport.KeepAlive.MaxMissedPongs < 1 {
		return errors.New("transport.keepalive.max_missed_pongs must be >= 1")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func validateAddress(address string) error {
	u, err := url.Parse(address)
	if err != nil {
		return fmt.Errorf("connection.address: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("connection.address must be a ws:// or wss:// URL, got %q", address)
	}
	if u.Host == "" {
		return fmt.Errorf("connection.address has no host: %q", address)
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
}
