package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/marketfeed/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Feed.Symbols) == 0 {
		return errors.New("feed.symbols is required")
	}
	if _, err := model.ParseSymbols(c.Feed.Symbols); err != nil {
		return fmt.Errorf("feed.symbols: %w", err)
	}

	if err := c.Snapshot.validate("snapshot"); err != nil {
		return err
	}
	if err := c.Stream.validate("stream"); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Render.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("render.color must be one of auto, always, never, got %q", c.Render.Color)
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

// Symbols returns the normalized symbol list.
func (c *Config) Symbols() ([]model.Symbol, error) {
	return model.ParseSymbols(c.Feed.Symbols)
}

func (s *SnapshotConfig) validate(prefix string) error {
	if err := validateURL(s.URL, prefix+".url", "http", "https"); err != nil {
		return err
	}
	if s.Exchange == "" {
		return fmt.Errorf("%s.exchange is required", prefix)
	}
	if s.Screener == "" {
		return fmt.Errorf("%s.screener is required", prefix)
	}
	if _, err := model.ParseInterval(s.Interval); err != nil {
		return fmt.Errorf("%s.interval: %w", prefix, err)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("%s.poll_interval must be > 0", prefix)
	}
	if s.ErrorBackoff <= 0 {
		return fmt.Errorf("%s.error_backoff must be > 0", prefix)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be > 0", prefix)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("%s.concurrency must be >= 1", prefix)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", prefix)
	}
	return nil
}

func (s *StreamConfig) validate(prefix string) error {
	if err := validateURL(s.URL, prefix+".url", "ws", "wss"); err != nil {
		return err
	}
	if s.ReconnectBaseDelay < 0 {
		return fmt.Errorf("%s.reconnect_base_delay must be >= 0", prefix)
	}
	if s.ReconnectMaxDelay < s.ReconnectBaseDelay {
		return fmt.Errorf("%s.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
			prefix, s.ReconnectMaxDelay, s.ReconnectBaseDelay)
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("%s.write_timeout must be > 0", prefix)
	}
	if s.PingTimeout > 0 && s.PingTimeout < s.PingInterval {
		return fmt.Errorf("%s.ping_timeout (%v) cannot be less than ping_interval (%v)",
			prefix, s.PingTimeout, s.PingInterval)
	}
	if s.BufferSize < 1 {
		return fmt.Errorf("%s.buffer_size must be >= 1", prefix)
	}
	return nil
}

func validateURL(raw, field string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL, got %q", field, strings.Join(schemes, "/"), raw)
}
