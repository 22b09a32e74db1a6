package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Load when the config file does not exist
var ErrNotFound = errors.New("config file not found")

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Logger    LoggerConfig    `toml:"logger" yaml:"logger"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
	RateLimit RateLimitConfig `toml:"ratelimit" yaml:"ratelimit"`
}

// ServerConfig contains settings for the public listener
type ServerConfig struct {
	Host              string        `toml:"host" yaml:"host"`
	Port              int           `toml:"port" yaml:"port"`
	ReadTimeout       time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	IdleTimeout       time.Duration `toml:"idle_timeout" yaml:"idle_timeout"`
	ReadHeaderTimeout time.Duration `toml:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggerConfig contains logging configuration
type LoggerConfig struct {
	Level     string `toml:"level" yaml:"level"`           // "debug", "info", "warn", "error"
	Format    string `toml:"format" yaml:"format"`         // "json" or "text"
	Output    string `toml:"output" yaml:"output"`         // "stdout", "stderr", or file path
	AccessLog bool   `toml:"access_log" yaml:"access_log"` // one log line per request
}

// MetricsConfig contains the Prometheus listener configuration.
// Metrics are served on their own port so the public route table is unchanged.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Port      int    `toml:"port" yaml:"port"`
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// RateLimitConfig contains rate limiting configuration. Each client may make
// RequestsPerWindow requests in any sliding Window.
type RateLimitConfig struct {
	Enabled           bool          `toml:"enabled" yaml:"enabled"`
	RequestsPerWindow int           `toml:"requests_per_window" yaml:"requests_per_window"`
	Window            time.Duration `toml:"window" yaml:"window"`
	CleanupInterval   time.Duration `toml:"cleanup_interval" yaml:"cleanup_interval"`
	ClientExpiry      time.Duration `toml:"client_expiry" yaml:"client_expiry"`
}

// Load reads a TOML or YAML file on top of the defaults, applies environment
// overrides and validates the result. The format is chosen by file extension.
func Load(configPath string) (*Config, error) {
	config := getDefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, configPath)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", configPath, err)
		}
	default:
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", configPath, err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from file, falling back to the defaults
// when the file does not exist. Environment overrides and validation apply in
// both cases, so a bad PORT is an error either way. The returned bool reports
// whether the file was read.
func LoadOrDefault(configPath string) (*Config, bool, error) {
	config, err := Load(configPath)
	if err == nil {
		return config, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	config = getDefaultConfig()
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, false, err
	}
	if err := config.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, false, nil
}

// Default returns the built-in configuration without consulting files or the environment
func Default() *Config {
	return getDefaultConfig()
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "",
			Port:              3000,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Logger: LoggerConfig{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			AccessLog: false,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Port:      9090,
			Namespace: "landing",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerWindow: 100,
			Window:            1 * time.Minute,
			CleanupInterval:   1 * time.Minute,
			ClientExpiry:      5 * time.Minute,
		},
	}
}

// applyEnv applies the PORT and LANDING_HOST overrides. Empty values are ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup("PORT"); ok && port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT environment variable %q: %w", port, err)
		}
		c.Server.Port = p
	}
	if host, ok := lookup("LANDING_HOST"); ok && host != "" {
		c.Server.Host = host
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"read_timeout", c.Server.ReadTimeout},
		{"write_timeout", c.Server.WriteTimeout},
		{"idle_timeout", c.Server.IdleTimeout},
		{"read_header_timeout", c.Server.ReadHeaderTimeout},
		{"shutdown_timeout", c.Server.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.value <= 0 {
			return fmt.Errorf("server %s must be positive", t.name)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid logger level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logger.Format] {
		return fmt.Errorf("invalid logger format: %s (must be json or text)", c.Logger.Format)
	}

	if c.Logger.Output == "" {
		return fmt.Errorf("logger output cannot be empty")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics port %d must differ from server port", c.Metrics.Port)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow < 1 {
			return fmt.Errorf("rate limit requests_per_window must be at least 1")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
		if c.RateLimit.CleanupInterval <= 0 {
			return fmt.Errorf("rate limit cleanup_interval must be positive")
		}
		if c.RateLimit.ClientExpiry < c.RateLimit.Window {
			return fmt.Errorf("rate limit client_expiry must be at least the window")
		}
	}

	return nil
}

// GetListenAddr returns the formatted listen address
func (c *Config) GetListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GetMetricsAddr returns the listen address of the metrics server
func (c *Config) GetMetricsAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Metrics.Port))
}
