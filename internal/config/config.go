package config

import "time"

// Config is the root configuration for a marketfeed instance.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Stream   StreamConfig   `yaml:"stream"`
	Log      LogConfig      `yaml:"log"`
	Render   RenderConfig   `yaml:"render"`
	Server   ServerConfig   `yaml:"server"`
}

// FeedConfig lists the symbols shared by both pipelines.
type FeedConfig struct {
	Symbols []string `yaml:"symbols"` // e.g. ["BTCUSDT", "ETHUSDT"]
}

// SnapshotConfig holds analysis provider and poller settings.
type SnapshotConfig struct {
	URL          string        `yaml:"url"`      // Scanner base URL
	Exchange     string        `yaml:"exchange"` // Ticker prefix, e.g. BINANCE
	Screener     string        `yaml:"screener"` // e.g. crypto
	Interval     string        `yaml:"interval"` // 1m 5m 15m 30m 1h 2h 4h 1d 1W 1M
	PollInterval time.Duration `yaml:"poll_interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	Timeout      time.Duration `yaml:"timeout"`
	Concurrency  int           `yaml:"concurrency"`
	MaxRetries   int           `yaml:"max_retries"`
}

// StreamConfig holds trade stream settings.
type StreamConfig struct {
	URL                string        `yaml:"url"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// RenderConfig controls console output.
type RenderConfig struct {
	Color string `yaml:"color"` // auto, always, never
}

// ServerConfig holds the health and metrics HTTP server settings.
type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}
