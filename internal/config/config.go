package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the flare configuration.
type Config struct {
	Daemon  DaemonConfig   `yaml:"daemon"`
	Search  SearchConfig   `yaml:"search"`
	Sources []SourceRecord `yaml:"sources"`
}

// DaemonConfig holds single-instance and listener settings.
type DaemonConfig struct {
	Daemonize   bool   `yaml:"daemonize"`    // Keep running after the first display and listen for commands
	SocketPath  string `yaml:"socket_path"`  // Unix socket path (overrides default)
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
	LogFile     string `yaml:"log_file"`     // Log file path (overrides default)
	MetricsAddr string `yaml:"metrics_addr"` // Serve Prometheus metrics here when set (daemon only)
	WatchConfig bool   `yaml:"watch_config"` // Rebuild the source registry when the config file changes
}

// SearchConfig holds dispatch settings.
type SearchConfig struct {
	AsyncTimeoutMs int `yaml:"async_timeout_ms"` // Default per-task timeout for async sources
	DebounceMs     int `yaml:"debounce_ms"`      // Delay after the last keystroke before dispatching
	MaxResults     int `yaml:"max_results"`      // Rows shown by the terminal front-end
}

// SourceRecord is one configured source, already parsed from YAML. Its Type
// selects the variant; Args carries variant-specific settings.
type SourceRecord struct {
	Type            string         `yaml:"type"`
	Name            string         `yaml:"name"`
	Alias           string         `yaml:"alias,omitempty"`
	Method          string         `yaml:"method,omitempty"`
	Priority        float64        `yaml:"priority"`
	Home            bool           `yaml:"home,omitempty"`
	Async           bool           `yaml:"async,omitempty"`
	KeywordRequired bool           `yaml:"keyword_required,omitempty"`
	TimeoutMs       int            `yaml:"timeout_ms,omitempty"`
	Args            map[string]any `yaml:"args,omitempty"`
}

// AsyncTimeout returns the default async task timeout.
func (s SearchConfig) AsyncTimeout() time.Duration {
	return time.Duration(s.AsyncTimeoutMs) * time.Millisecond
}

// Debounce returns the keystroke debounce interval.
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Daemonize:   false,
			SocketPath:  "", // Use default from paths
			LogLevel:    "info",
			LogFile:     "", // Use default from paths
			WatchConfig: true,
		},
		Search: SearchConfig{
			AsyncTimeoutMs: 2000,
			DebounceMs:     60,
			MaxResults:     12,
		},
		Sources: DefaultSources(),
	}
}

// DefaultSources returns the sources used when the config file has none.
func DefaultSources() []SourceRecord {
	return []SourceRecord{
		{Type: "calc", Name: "Calculator", Method: "copy", Priority: 1},
		{Type: "clipboard", Name: "Clipboard", Method: "copy", Priority: 2, Home: true},
		{Type: "app", Name: "Apps", Alias: "app", Method: "app_launcher", Priority: 3},
		{Type: "media", Name: "Now Playing", Method: "command", Priority: 4, Home: true, Async: true,
			Args: map[string]any{"player": "playerctl"}},
		{Type: "web", Name: "Web Search", Alias: "g", Method: "web_launcher", Priority: 100, KeywordRequired: true,
			Args: map[string]any{"engine": "duckduckgo", "url": "https://duckduckgo.com/?q={keyword}"}},
		{Type: "process", Name: "Kill Process", Alias: "ps", Method: "kill", Priority: 0, Async: true},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := cfg.ApplyEnvOverrides(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Sources from the file replace defaults rather than appending to them.
	cfg.Sources = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Sources == nil {
		cfg.Sources = DefaultSources()
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration. Individual source records are not
// checked here; the source registry drops invalid ones with a diagnostic.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error (got: %s)", c.Daemon.LogLevel)
	}
	if c.Search.AsyncTimeoutMs <= 0 {
		return errors.New("search.async_timeout_ms must be > 0")
	}
	if c.Search.DebounceMs < 0 {
		return errors.New("search.debounce_ms must be >= 0")
	}
	if c.Search.MaxResults < 1 {
		c.Search.MaxResults = 1
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// envOverrides lists the FLARE_* variables honored on top of the file.
type envOverrides struct {
	LogLevel       string `envconfig:"LOG_LEVEL"`
	Debug          string `envconfig:"DEBUG"`
	Socket         string `envconfig:"SOCKET"`
	AsyncTimeoutMs int    `envconfig:"ASYNC_TIMEOUT_MS"`
	Daemonize      string `envconfig:"DAEMONIZE"`
	MetricsAddr    string `envconfig:"METRICS_ADDR"`
}

// ApplyEnvOverrides applies FLARE_* environment variable overrides.
func (c *Config) ApplyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process("flare", &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if b, err := strconv.ParseBool(env.Debug); err == nil && b {
		c.Daemon.LogLevel = "debug"
	}
	if isValidLogLevel(env.LogLevel) {
		c.Daemon.LogLevel = env.LogLevel
	}
	if env.Socket != "" {
		c.Daemon.SocketPath = env.Socket
	}
	if env.AsyncTimeoutMs > 0 {
		c.Search.AsyncTimeoutMs = env.AsyncTimeoutMs
	}
	if b, err := strconv.ParseBool(env.Daemonize); err == nil {
		c.Daemon.Daemonize = b
	}
	if env.MetricsAddr != "" {
		c.Daemon.MetricsAddr = env.MetricsAddr
	}
	return nil
}
