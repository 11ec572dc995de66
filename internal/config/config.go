// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/cero/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	DBPath   string `kong:"help='SQLite database path (overrides config).',env='DB_PATH'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	DB      DBConfig      `toml:"db"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Host      string          `toml:"host"`
	Port      int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls the per-IP fixed-window limiter.
type RateLimitConfig struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
	WindowSeconds     int `toml:"window_seconds"`
}

// DBConfig holds SQLite settings.
type DBConfig struct {
	Path string `toml:"path"`
}

// SessionConfig holds session lifetime settings.
type SessionConfig struct {
	ExpiryHours     int `toml:"expiry_hours"`
	InactivityHours int `toml:"inactivity_hours"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Load reads the TOML config file and applies CLI overrides. When no
// explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/cero/config.toml then configs/config.toml; if neither exists the
// built-in defaults are used.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfigInPaths(configSearchPaths)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.DBPath != "" {
		c.DB.Path = cli.DBPath
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must be non-negative; got %d", c.Server.RateLimit.RequestsPerMinute)
	}
	if c.Server.RateLimit.WindowSeconds < 0 {
		return fmt.Errorf("server.rate_limit.window_seconds must be non-negative; got %d", c.Server.RateLimit.WindowSeconds)
	}
	if c.Session.ExpiryHours < 0 {
		return fmt.Errorf("session.expiry_hours must be non-negative; got %d", c.Session.ExpiryHours)
	}
	if c.Session.InactivityHours < 0 {
		return fmt.Errorf("session.inactivity_hours must be non-negative; got %d", c.Session.InactivityHours)
	}

	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	return nil
}

// setDefaults fills zero-valued fields with the server's defaults.
// Integer zero means "unset" because TOML cannot distinguish an
// explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit.RequestsPerMinute == 0 {
		c.Server.RateLimit.RequestsPerMinute = 60
	}
	if c.Server.RateLimit.WindowSeconds == 0 {
		c.Server.RateLimit.WindowSeconds = 60
	}
	if c.DB.Path == "" {
		c.DB.Path = "cero.db"
	}
	if c.Session.ExpiryHours == 0 {
		c.Session.ExpiryHours = 7 * 24
	}
	if c.Session.InactivityHours == 0 {
		c.Session.InactivityHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
