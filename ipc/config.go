package ipc

import (
	"log/slog"
	"time"
)

// Timeout is the ceiling for every blocking call regardless of transport.
const Timeout = 20 * time.Second

// Keys and defaults of the loopback ports held in the local database.
const (
	ServicePortKey     = "ns_service_port"
	DefaultServicePort = 8001
	CachePortKey       = "cache_service_port"
	DefaultCachePort   = 8002
)

// Mode selects the transport family used by the whole process.
type Mode int

const (
	ModeSignals Mode = iota
	ModeHTTP
)

func (m Mode) String() string {
	if m == ModeHTTP {
		return "http"
	}
	return "signals"
}

// Config defines configuration for the IPC layer.
type Config struct {
	// OverHTTP routes every call through the loopback transport.
	OverHTTP bool `json:"ipc_over_http" mapstructure:"ipc_over_http"`

	// Scope under which slots are registered and calls are addressed.
	Scope string `json:"scope,omitempty" mapstructure:"scope"`

	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`

	ServicePort int `json:"service_port,omitempty" mapstructure:"service_port"`
	CachePort   int `json:"cache_port,omitempty" mapstructure:"cache_port"`

	Logger *slog.Logger `json:"-" mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		Scope:       "plugin.relay",
		Timeout:     Timeout,
		ServicePort: DefaultServicePort,
		CachePort:   DefaultCachePort,
		Logger:      slog.Default(),
	}
}

// Merge applies non-zero values from source into c. OverHTTP is a plain
// boolean and is always taken from source.
func (c *Config) Merge(source *Config) {
	c.OverHTTP = source.OverHTTP

	if source.Scope != "" {
		c.Scope = source.Scope
	}

	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}

	if source.ServicePort > 0 {
		c.ServicePort = source.ServicePort
	}

	if source.CachePort > 0 {
		c.CachePort = source.CachePort
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}

// Mode resolves the transport family. It is read once when the router is
// built.
func (c Config) Mode() Mode {
	if c.OverHTTP {
		return ModeHTTP
	}
	return ModeSignals
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return Timeout
	}
	return c.Timeout
}
