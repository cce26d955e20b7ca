// Package config handles loading and managing modconsole configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the modconsole configuration.
type Config struct {
	Remote    RemoteConfig    `toml:"remote"`
	Console   ConsoleConfig   `toml:"console"`
	DevServer DevServerConfig `toml:"dev_server"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// RemoteConfig points the console at the moderation backend.
type RemoteConfig struct {
	URL               string        `toml:"url"`
	APIKey            string        `toml:"api_key"`
	AllowInsecure     bool          `toml:"allow_insecure"`      // Permit plain http to non-loopback hosts
	Timeout           time.Duration `toml:"timeout"`             // Per-request timeout (default: 10s)
	RequestsPerSecond float64       `toml:"requests_per_second"` // Client-side pacing; 0 disables
}

// ConsoleConfig tunes the console state layer.
type ConsoleConfig struct {
	Debounce      time.Duration `toml:"debounce"`       // Filter edit quiet period (default: 300ms)
	CacheTTL      time.Duration `toml:"cache_ttl"`      // Listing cache freshness (default: 30s)
	StaleFallback bool          `toml:"stale_fallback"` // Show stale data when a refetch fails
}

// DevServerConfig configures the in-memory development backend.
type DevServerConfig struct {
	BindAddr    string   `toml:"bind_addr"` // default: 127.0.0.1
	Port        int      `toml:"port"`      // default: 3001
	APIKey      string   `toml:"api_key"`
	Records     int      `toml:"records"` // Number of seeded records (default: 150)
	Seed        int64    `toml:"seed"`    // Seed for generated data
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   float64  `toml:"rate_limit"` // Requests per second per client; 0 disables
}

// IsLoopback reports whether the dev server binds to a loopback address.
func (d DevServerConfig) IsLoopback() bool {
	host := d.BindAddr
	if host == "" || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateSecure refuses to expose the dev server beyond loopback without
// an API key.
func (d DevServerConfig) ValidateSecure() error {
	if d.IsLoopback() || d.APIKey != "" {
		return nil
	}
	return fmt.Errorf("dev server bound to %s without an API key\n\n"+
		"Set [dev_server] api_key in config.toml or bind to 127.0.0.1", d.BindAddr)
}

// BaseURL returns the URL clients use to reach the dev server.
func (d DevServerConfig) BaseURL() string {
	host := d.BindAddr
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(d.Port))
}

// DefaultHome returns the default modconsole home directory.
// Respects MODCONSOLE_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MODCONSOLE_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".modconsole"
	}
	return filepath.Join(home, ".modconsole")
}

// Default returns the configuration used when no file is present.
func Default(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Remote: RemoteConfig{
			URL:     "http://localhost:3001",
			Timeout: 10 * time.Second,
		},
		Console: ConsoleConfig{
			Debounce: 300 * time.Millisecond,
			CacheTTL: 30 * time.Second,
		},
		DevServer: DevServerConfig{
			BindAddr: "127.0.0.1",
			Port:     3001,
			Records:  150,
			Seed:     1,
		},
	}
}

// Load reads the configuration from the specified file.
// If path is empty, uses the default location (~/.modconsole/config.toml).
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := Default(homeDir)

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("[remote] timeout must not be negative")
	}
	if c.Remote.RequestsPerSecond < 0 {
		return fmt.Errorf("[remote] requests_per_second must not be negative")
	}
	if c.Console.Debounce < 0 {
		return fmt.Errorf("[console] debounce must not be negative")
	}
	if c.Console.CacheTTL < 0 {
		return fmt.Errorf("[console] cache_ttl must not be negative")
	}
	if c.DevServer.Port < 0 || c.DevServer.Port > 65535 {
		return fmt.Errorf("[dev_server] port %d out of range", c.DevServer.Port)
	}
	if c.DevServer.Records < 0 {
		return fmt.Errorf("[dev_server] records must not be negative")
	}
	return nil
}

// StatePath returns the path of the persisted client state.
func (c *Config) StatePath() string {
	return filepath.Join(c.HomeDir, "state.toml")
}

// EnsureHomeDir creates the home directory if needed.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0700)
}
