// Package config loads the gonats client's YAML configuration file:
// connection target, authentication, TLS, logging, and diagnostics,
// via a Load/Validate/Default shape with a YAML-string Duration type.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete gonats client configuration.
type Config struct {
	Connection  ConnectionConfig  `yaml:"connection"`
	Auth        AuthConfig        `yaml:"auth"`
	TLS         TLSConfig         `yaml:"tls"`
	Logging     LogConfig         `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

type ConnectionConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	WebSocketURL   string   `yaml:"websocket_url"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	SendTimeout    Duration `yaml:"send_timeout"`
}

type AuthConfig struct {
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	AuthToken string `yaml:"auth_token"`
}

type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Cert               string `yaml:"cert"`
	Key                string `yaml:"key"`
	CACert             string `yaml:"ca_cert"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type DiagnosticsConfig struct {
	Enabled  bool     `yaml:"enabled"`
	DumpPath string   `yaml:"dump_path"`
	Interval Duration `yaml:"interval"`
}

// Duration is a time.Duration that supports YAML string unmarshaling,
// e.g. "10s" or "2m30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads config from a YAML file, applying defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Connection.WebSocketURL == "" {
		if c.Connection.Host == "" {
			return fmt.Errorf("connection.host is required when websocket_url is not set")
		}
		if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
			return fmt.Errorf("connection.port must be between 1 and 65535, got %d", c.Connection.Port)
		}
	}

	if c.TLS.Enabled && (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return fmt.Errorf("tls.cert and tls.key must both be set or both be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	if c.Diagnostics.Enabled && c.Diagnostics.DumpPath == "" {
		return fmt.Errorf("diagnostics.dump_path is required when diagnostics is enabled")
	}

	return nil
}
