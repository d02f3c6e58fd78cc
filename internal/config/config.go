package config

import "time"

// Config holds server configuration values.
type Config struct {
	TCPAddr   string `mapstructure:"tcp_addr" yaml:"tcp_addr"`
	WSAddr    string `mapstructure:"ws_addr" yaml:"ws_addr"`
	EchoAddr  string `mapstructure:"echo_addr" yaml:"echo_addr"`
	AdminAddr string `mapstructure:"admin_addr" yaml:"admin_addr"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// IdleTimeout is how long a player's connection may go without an
	// inbound message before the watchdog force-closes it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	// WatchdogInterval is how often each player's idle watchdog wakes up.
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval" yaml:"watchdog_interval"`

	InboundBufferSize  int `mapstructure:"inbound_buffer_size" yaml:"inbound_buffer_size"`
	OutboundBufferSize int `mapstructure:"outbound_buffer_size" yaml:"outbound_buffer_size"`

	// SyncActiveWindow bounds how stale a donor's last-seen timestamp may
	// be for pick-syncer to still consider it active.
	SyncActiveWindow time.Duration `mapstructure:"sync_active_window" yaml:"sync_active_window"`
	// SyncRetryInterval is the re-announce period for the join retry loop.
	SyncRetryInterval time.Duration `mapstructure:"sync_retry_interval" yaml:"sync_retry_interval"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		TCPAddr:            ":9121",
		WSAddr:             ":9122",
		EchoAddr:           ":9120",
		AdminAddr:          ":9123",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		IdleTimeout:        30 * time.Second,
		WatchdogInterval:   time.Second,
		InboundBufferSize:  64,
		OutboundBufferSize: 256,
		SyncActiveWindow:   2 * time.Second,
		SyncRetryInterval:  2 * time.Second,
		LogLevel:           "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.TCPAddr != "" {
		c.TCPAddr = other.TCPAddr
	}
	if other.WSAddr != "" {
		c.WSAddr = other.WSAddr
	}
	if other.EchoAddr != "" {
		c.EchoAddr = other.EchoAddr
	}
	if other.AdminAddr != "" {
		c.AdminAddr = other.AdminAddr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.IdleTimeout != 0 {
		c.IdleTimeout = other.IdleTimeout
	}
	if other.WatchdogInterval != 0 {
		c.WatchdogInterval = other.WatchdogInterval
	}
	if other.InboundBufferSize != 0 {
		c.InboundBufferSize = other.InboundBufferSize
	}
	if other.OutboundBufferSize != 0 {
		c.OutboundBufferSize = other.OutboundBufferSize
	}
	if other.SyncActiveWindow != 0 {
		c.SyncActiveWindow = other.SyncActiveWindow
	}
	if other.SyncRetryInterval != 0 {
		c.SyncRetryInterval = other.SyncRetryInterval
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
