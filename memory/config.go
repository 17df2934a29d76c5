package memory

// Config holds store initialization parameters.
type Config struct {
	Path string `json:"path,omitempty" mapstructure:"path"` // FileStore root directory.
}

// DefaultConfig keeps state under ./data.
func DefaultConfig() Config {
	return Config{Path: "data"}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
}

// NewStore creates the root Store. An empty Path selects an in-memory store
// that is lost at process exit.
func NewStore(cfg *Config) Store {
	if cfg.Path == "" {
		return NewMapStore()
	}
	return NewFileStore(cfg.Path)
}
