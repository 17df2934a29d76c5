package signals

import (
	"log/slog"
	"time"
)

// DefaultTimeout bounds every blocking MakeCall that does not set its own.
const DefaultTimeout = 20 * time.Second

// Config defines configuration for a Bus instance.
type Config struct {
	// Bus identity; also the default scope of registered slots.
	Name string `json:"name" mapstructure:"name"`

	// Communication settings
	ChannelBufferSize int           `json:"channel_buffer_size,omitempty" mapstructure:"channel_buffer_size"`
	DefaultTimeout    time.Duration `json:"default_timeout,omitempty" mapstructure:"default_timeout"`
	EmitQueueSize     int           `json:"emit_queue_size,omitempty" mapstructure:"emit_queue_size"`

	// Observability
	Logger *slog.Logger `json:"-" mapstructure:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "plugin.relay",
		ChannelBufferSize: 100,
		DefaultTimeout:    DefaultTimeout,
		EmitQueueSize:     1024,
		Logger:            slog.Default(),
	}
}

func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.ChannelBufferSize > 0 {
		c.ChannelBufferSize = source.ChannelBufferSize
	}

	if source.DefaultTimeout > 0 {
		c.DefaultTimeout = source.DefaultTimeout
	}

	if source.EmitQueueSize > 0 {
		c.EmitQueueSize = source.EmitQueueSize
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
