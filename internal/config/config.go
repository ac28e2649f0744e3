package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	DART    DART    `yaml:"dart"`
	Collect Collect `yaml:"collect"`
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Batch   Batch   `yaml:"batch"`
}

type DART struct {
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit int           `yaml:"rate_limit"`

	// DirectoryRefresh is how stale the entity directory may get before a
	// failed name lookup triggers a resync.
	DirectoryRefresh time.Duration `yaml:"directory_refresh"`
}

type Collect struct {
	Workers      int           `yaml:"workers"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	WindowYears  int           `yaml:"window_years"`

	// MaxProbePeriods caps variant probing; 0 probes every missing period.
	MaxProbePeriods int `yaml:"max_probe_periods"`
}

type Storage struct {
	Type           string `yaml:"type"`
	DataDir        string `yaml:"data_dir"`
	PostgresURLEnv string `yaml:"postgres_url_env"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Batch struct {
	Size   int    `yaml:"size"`
	Period string `yaml:"period"`
}

// ConfigDir returns the XDG config directory for dartq.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "dartq")
}

// DataDir returns the XDG data directory for dartq.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "dartq")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/dartq/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'dartq init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		DART: DART{
			BaseURL:   "https://opendart.fss.or.kr/api",
			APIKeyEnv: "DART_API_KEY",
			Timeout:   10 * time.Second,
			RateLimit: 10,

			DirectoryRefresh: 24 * time.Hour,
		},
		Collect: Collect{
			Workers:      10,
			FetchTimeout: 10 * time.Second,
			WindowYears:  4,
		},
		Storage: Storage{
			Type:           "sqlite",
			PostgresURLEnv: "DATABASE_URL",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
		Batch:   Batch{Size: 5, Period: "202509"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Collect.Workers < 1 {
		return fmt.Errorf("collect.workers must be at least 1, got %d", c.Collect.Workers)
	}
	if c.Collect.WindowYears < 1 {
		return fmt.Errorf("collect.window_years must be at least 1, got %d", c.Collect.WindowYears)
	}
	if c.Collect.MaxProbePeriods < 0 {
		return fmt.Errorf("collect.max_probe_periods must not be negative")
	}
	if c.Collect.FetchTimeout <= 0 {
		return fmt.Errorf("collect.fetch_timeout must be positive")
	}
	switch c.Storage.Type {
	case "sqlite", "badger", "postgres":
	default:
		return fmt.Errorf("unsupported storage type: %q (sqlite, badger or postgres)", c.Storage.Type)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

// APIKey returns the DART API key from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.DART.APIKeyEnv)
}

// PostgresURL returns the Postgres connection string from the configured
// environment variable.
func (c *Config) PostgresURL() string {
	return os.Getenv(c.Storage.PostgresURLEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
