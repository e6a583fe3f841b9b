package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSnapshotURL        = "https://scanner.tradingview.com"
	DefaultExchange           = "BINANCE"
	DefaultScreener           = "crypto"
	DefaultInterval           = "1m"
	DefaultPollInterval       = 60 * time.Second
	DefaultErrorBackoff       = 5 * time.Second
	DefaultSnapshotTimeout    = 10 * time.Second
	DefaultPollConcurrency    = 4
	DefaultStreamURL          = "wss://stream.binance.com:9443/ws"
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 90 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultBufferSize         = 1024
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultColor              = "auto"
	DefaultServerPort         = 9090
)

func (c *Config) applyDefaults() {
	// Snapshot defaults
	if c.Snapshot.URL == "" {
		c.Snapshot.URL = DefaultSnapshotURL
	}
	if c.Snapshot.Exchange == "" {
		c.Snapshot.Exchange = DefaultExchange
	}
	if c.Snapshot.Screener == "" {
		c.Snapshot.Screener = DefaultScreener
	}
	if c.Snapshot.Interval == "" {
		c.Snapshot.Interval = DefaultInterval
	}
	if c.Snapshot.PollInterval == 0 {
		c.Snapshot.PollInterval = DefaultPollInterval
	}
	if c.Snapshot.ErrorBackoff == 0 {
		c.Snapshot.ErrorBackoff = DefaultErrorBackoff
	}
	if c.Snapshot.Timeout == 0 {
		c.Snapshot.Timeout = DefaultSnapshotTimeout
	}
	if c.Snapshot.Concurrency == 0 {
		c.Snapshot.Concurrency = DefaultPollConcurrency
	}

	// Stream defaults
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Render.Color == "" {
		c.Render.Color = DefaultColor
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}
