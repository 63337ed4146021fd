// Package config loads and persists the wstail configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wstail/wstail/internal/core"
)

// Config holds the user configuration. The connection fields mirror the
// editable stream target; the capability fields are resolved once at
// startup and injected into the controller.
type Config struct {
	// Server is the base WebSocket URL.
	Server string `yaml:"server,omitempty"`

	// LogID is the default log identifier.
	LogID string `yaml:"log_id,omitempty"`

	// Token is the authorization token.
	Token string `yaml:"token,omitempty"`

	// HeadersSupported controls whether the token is sent as an
	// Authorization handshake header (true) or as query parameters.
	HeadersSupported bool `yaml:"headers_supported"`

	// LoopbackRewrite rewrites localhost/127.0.0.1 hosts to this address.
	LoopbackRewrite string `yaml:"loopback_rewrite,omitempty"`

	// Insecure allows insecure TLS connections.
	Insecure bool `yaml:"insecure,omitempty"`

	// Filter is an optional JavaScript predicate over incoming fragments.
	Filter string `yaml:"filter,omitempty"`

	// HistoryPath is the session history database location.
	HistoryPath string `yaml:"history_path,omitempty"`
}

// Default returns the default configuration.
func Default() Config {
	configDir, _ := os.UserConfigDir()
	return Config{
		HeadersSupported: true,
		HistoryPath:      filepath.Join(configDir, "wstail", "history.db"),
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	configDir, _ := os.UserConfigDir()
	return filepath.Join(configDir, "wstail", "config.yaml")
}

// Option mutates a Config.
type Option func(*Config)

// WithServer sets the base WebSocket URL.
func WithServer(server string) Option {
	return func(c *Config) {
		c.Server = server
	}
}

// WithLogID sets the log identifier.
func WithLogID(logID string) Option {
	return func(c *Config) {
		c.LogID = logID
	}
}

// WithToken sets the authorization token.
func WithToken(token string) Option {
	return func(c *Config) {
		c.Token = token
	}
}

// WithHeadersSupported sets whether handshake headers are available.
func WithHeadersSupported(supported bool) Option {
	return func(c *Config) {
		c.HeadersSupported = supported
	}
}

// WithLoopbackRewrite sets the loopback rewrite target.
func WithLoopbackRewrite(host string) Option {
	return func(c *Config) {
		c.LoopbackRewrite = host
	}
}

// New creates a Config with the given options applied to the defaults.
func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Load reads the configuration from path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Target returns the stream target described by the configuration.
func (c Config) Target() core.StreamTarget {
	return core.StreamTarget{
		Server: c.Server,
		LogID:  c.LogID,
		Token:  c.Token,
	}
}

// Capabilities returns the host capabilities described by the configuration.
func (c Config) Capabilities() core.Capabilities {
	return core.Capabilities{
		HandshakeHeaders: c.HeadersSupported,
		LoopbackRewrite:  c.LoopbackRewrite,
		TLSInsecure:      c.Insecure,
	}
}
