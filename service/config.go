package service

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/memory"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/session"
	"github.com/tailored-agentic-units/relay/signals"
)

// EnvPrefix prefixes environment overrides, e.g. RELAY_IPC_IPC_OVER_HTTP.
const EnvPrefix = "RELAY"

// CredentialsConfig locates the stored account credentials.
type CredentialsConfig struct {
	Path string `json:"path,omitempty" mapstructure:"path"`
	Seed string `json:"seed,omitempty" mapstructure:"seed"`
}

// Config holds initialization parameters for all service subsystems.
// Each section delegates to that subsystem's constructor.
type Config struct {
	IPC         ipc.Config              `json:"ipc" mapstructure:"ipc"`
	Signals     signals.Config          `json:"signals" mapstructure:"signals"`
	Session     session.Config          `json:"session" mapstructure:"session"`
	Memory      memory.Config           `json:"memory" mapstructure:"memory"`
	KVStore     kvstore.Config          `json:"kvstore" mapstructure:"kvstore"`
	Log         observability.LogConfig `json:"log" mapstructure:"log"`
	Credentials CredentialsConfig       `json:"credentials" mapstructure:"credentials"`

	// Observer names the registered observer receiving service and session
	// events.
	Observer string `json:"observer,omitempty" mapstructure:"observer"`

	// Settings is the path of the user settings TOML file.
	Settings string `json:"settings,omitempty" mapstructure:"settings"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		IPC:         ipc.DefaultConfig(),
		Signals:     signals.DefaultConfig(),
		Session:     session.DefaultConfig(),
		Memory:      memory.DefaultConfig(),
		KVStore:     kvstore.DefaultConfig(),
		Log:         observability.DefaultLogConfig(),
		Credentials: CredentialsConfig{Path: "data/credentials.json"},
		Observer:    observability.ObserverSlog,
		Settings:    "data/settings.toml",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.IPC.Merge(&source.IPC)
	c.Signals.Merge(&source.Signals)
	c.Session.Merge(&source.Session)
	c.Memory.Merge(&source.Memory)
	c.KVStore.Merge(&source.KVStore)
	c.Log.Merge(&source.Log)

	if source.Credentials.Path != "" {
		c.Credentials.Path = source.Credentials.Path
	}
	if source.Credentials.Seed != "" {
		c.Credentials.Seed = source.Credentials.Seed
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.Settings != "" {
		c.Settings = source.Settings
	}
}

// LoadConfig reads a JSON, TOML or YAML config file, applies RELAY_
// environment overrides, merges the result with defaults and returns it. An
// empty filename reads the environment only.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, &cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

// setDefaults registers every environment-overridable key. Viper only
// consults the environment for keys it knows about.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("ipc.ipc_over_http", cfg.IPC.OverHTTP)
	v.SetDefault("ipc.scope", cfg.IPC.Scope)
	v.SetDefault("ipc.timeout", cfg.IPC.Timeout)
	v.SetDefault("ipc.service_port", cfg.IPC.ServicePort)
	v.SetDefault("ipc.cache_port", cfg.IPC.CachePort)
	v.SetDefault("signals.name", cfg.Signals.Name)
	v.SetDefault("session.base_url", cfg.Session.BaseURL)
	v.SetDefault("session.timeout", cfg.Session.Timeout)
	v.SetDefault("session.user_agent", cfg.Session.UserAgent)
	v.SetDefault("session.home_path", cfg.Session.HomePath)
	v.SetDefault("memory.path", cfg.Memory.Path)
	v.SetDefault("kvstore.path", cfg.KVStore.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("credentials.path", cfg.Credentials.Path)
	v.SetDefault("credentials.seed", cfg.Credentials.Seed)
	v.SetDefault("observer", cfg.Observer)
	v.SetDefault("settings", cfg.Settings)
}
