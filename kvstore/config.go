package kvstore

import "log/slog"

// Config holds database initialization parameters.
type Config struct {
	Path string `json:"path,omitempty" mapstructure:"path"`

	Logger *slog.Logger `json:"-" mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		Path:   "data/relay.db",
		Logger: slog.Default(),
	}
}

func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
