package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultPath = "apodfeed.toml"

// TomlApi holds the APOD API settings
type TomlApi struct {
	Host            string `toml:"host"`
	Key             string `toml:"key"`
	Timeout         string `toml:"timeout"`
	RequestsPerHour int    `toml:"requests_per_hour"`
	UserAgent       string `toml:"user_agent"`
}

// TomlServer holds the HTTP server settings
type TomlServer struct {
	Port         int    `toml:"port"`
	AllowOrigins string `toml:"allow_origins"`
}

// TomlFeed holds the feed paging settings
type TomlFeed struct {
	Retry int `toml:"retry"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Api    TomlApi    `toml:"api"`
	Server TomlServer `toml:"server"`
	Feed   TomlFeed   `toml:"feed"`
}

func Default() *TomlConfig {
	return &TomlConfig{
		Api: TomlApi{
			Host:            "https://api.nasa.gov",
			Key:             "DEMO_KEY",
			Timeout:         "15s",
			RequestsPerHour: 1000,
			UserAgent:       "apodfeed",
		},
		Server: TomlServer{
			Port:         3000,
			AllowOrigins: "*",
		},
		Feed: TomlFeed{
			Retry: 3,
		},
	}
}

// LoadConfig reads the file at path on top of the defaults
func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return config, nil
}

// LoadConfigOrDefault is LoadConfig but falls back to the defaults when the file does not exist
func LoadConfigOrDefault(path string) (*TomlConfig, error) {
	config, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

// SaveConfig writes config to path, creating parent directories when needed
func SaveConfig(path string, config *TomlConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	// The file holds an API key
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

func (c *TomlConfig) Validate() error {
	if c.Api.Host == "" {
		return fmt.Errorf("api host is required")
	}

	if c.Api.Key == "" {
		return fmt.Errorf("api key is required")
	}

	if _, err := c.ApiTimeout(); err != nil {
		return err
	}

	if c.Api.RequestsPerHour < 0 {
		return fmt.Errorf("invalid requests per hour: %d", c.Api.RequestsPerHour)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Feed.Retry < 0 {
		return fmt.Errorf("invalid feed retry count: %d", c.Feed.Retry)
	}

	return nil
}

// ApiTimeout parses the configured API timeout
func (c *TomlConfig) ApiTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Api.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid api timeout %q: %w", c.Api.Timeout, err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("invalid api timeout %q", c.Api.Timeout)
	}
	return timeout, nil
}

// HasPersonalKey reports whether a key other than the shared demo key is configured
func (c *TomlConfig) HasPersonalKey() bool {
	return c.Api.Key != "" && c.Api.Key != "DEMO_KEY"
}
