package session

import (
	"log/slog"
	"maps"
	"time"
)

// Well-known endpoint names.
const (
	EndpointLogin           = "login"
	EndpointLogout          = "logout"
	EndpointBrowse          = "browse"
	EndpointActivateProfile = "activate_profile"
)

// Config holds session initialization parameters.
type Config struct {
	// BaseURL of the streaming website; endpoint paths are resolved against it.
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`

	// Endpoints maps endpoint names to paths.
	Endpoints map[string]string `json:"endpoints,omitempty" mapstructure:"endpoints"`

	Timeout   time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	UserAgent string        `json:"user_agent,omitempty" mapstructure:"user_agent"`

	// AuthCookies must all be present and unexpired for the jar to verify.
	AuthCookies []string `json:"auth_cookies,omitempty" mapstructure:"auth_cookies"`

	// HomePath is where the frontend is sent after logout.
	HomePath string `json:"home_path,omitempty" mapstructure:"home_path"`

	Logger *slog.Logger `json:"-" mapstructure:"-"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://www.netflix.com",
		Endpoints: map[string]string{
			EndpointLogin:           "/login",
			EndpointLogout:          "/SignOut",
			EndpointBrowse:          "/browse",
			EndpointActivateProfile: "/profiles/switch",
			"profiles":              "/profiles/manage",
			"metadata":              "/nq/website/memberapi/release/metadata",
			"shakti":                "/nq/website/memberapi/release/pathEvaluator",
		},
		Timeout:     30 * time.Second,
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		AuthCookies: []string{"NetflixId", "SecureNetflixId"},
		HomePath:    "/",
		Logger:      slog.Default(),
	}
}

// Merge applies non-zero values from source into c. Endpoints are merged by
// name.
func (c *Config) Merge(source *Config) {
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}

	if len(source.Endpoints) > 0 {
		merged := maps.Clone(c.Endpoints)
		if merged == nil {
			merged = make(map[string]string, len(source.Endpoints))
		}
		maps.Copy(merged, source.Endpoints)
		c.Endpoints = merged
	}

	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}

	if source.UserAgent != "" {
		c.UserAgent = source.UserAgent
	}

	if len(source.AuthCookies) > 0 {
		c.AuthCookies = source.AuthCookies
	}

	if source.HomePath != "" {
		c.HomePath = source.HomePath
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
