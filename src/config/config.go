// Package config provides configuration management for bkfetch.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// then environment variables (including any loaded from a .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAPIBaseURL   = "https://api.buildkite.com/v2"
	DefaultOutputDir    = ".bkfetch/builds"
	DefaultPollInterval = 2 * time.Second
	DefaultTailLines    = 40
	DefaultConcurrency  = 1
	DefaultConfigFile   = "bkfetch.yaml"
	DefaultLogLevel     = "info"
)

// Environment variables.
const (
	EnvAPIToken        = "BUILDKITE_API_TOKEN"
	EnvAPIURL          = "BUILDKITE_API_URL"
	EnvConfigFile      = "BKFETCH_CONFIG"
	EnvOutputDir       = "BKFETCH_OUTPUT_DIR"
	EnvPollInterval    = "BKFETCH_POLL_INTERVAL"
	EnvTailLines       = "BKFETCH_TAIL_LINES"
	EnvConcurrency     = "BKFETCH_CONCURRENCY"
	EnvLogLevel        = "BKFETCH_LOG_LEVEL"
	EnvPostgresDSN     = "POSTGRES_DSN"
	EnvRedpandaBrokers = "REDPANDA_BROKERS"
)

// ErrMissingToken is returned when no Buildkite API token is configured.
var ErrMissingToken = errors.New(EnvAPIToken + " environment variable is required")

// Config holds the application configuration.
type Config struct {
	// BuildkiteAPIToken is the API token for authenticating with Buildkite.
	BuildkiteAPIToken string `yaml:"buildkite_api_token"`
	// APIBaseURL is the Buildkite REST API root.
	APIBaseURL string `yaml:"api_url"`

	// OutputDir is the root directory snapshots are written under.
	OutputDir string `yaml:"output_dir"`
	// PollInterval is the follower's base poll interval.
	PollInterval time.Duration `yaml:"poll_interval"`
	// TailLines is how many lines of an existing log follow prints on start.
	TailLines int `yaml:"tail_lines"`
	// Concurrency bounds parallel step captures during a snapshot.
	Concurrency int `yaml:"concurrency"`

	// PostgresDSN enables the snapshot history store when set.
	PostgresDSN string `yaml:"postgres_dsn"`
	// RedpandaBrokers enables event publishing when set.
	RedpandaBrokers []string `yaml:"redpanda_brokers"`

	LogLevel string `yaml:"log_level"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		APIBaseURL:   DefaultAPIBaseURL,
		OutputDir:    DefaultOutputDir,
		PollInterval: DefaultPollInterval,
		TailLines:    DefaultTailLines,
		Concurrency:  DefaultConcurrency,
		LogLevel:     DefaultLogLevel,
	}
}

// Load resolves configuration without requiring an API token. Commands
// that only read local snapshots use it directly.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := Default()

	path, explicit := os.LookupEnv(EnvConfigFile)
	if !explicit || path == "" {
		path = DefaultConfigFile
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration and requires an API token.
func LoadFromEnv() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.BuildkiteAPIToken == "" {
		return nil, ErrMissingToken
	}
	return cfg, nil
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoadFromEnv() *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadFile merges a YAML file into cfg. A missing file is only an error
// when the path was given explicitly.
func (c *Config) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.BuildkiteAPIToken = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPollInterval, v, err)
		}
		c.PollInterval = d
	}
	if v := os.Getenv(EnvTailLines); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTailLines, v, err)
		}
		c.TailLines = n
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvConcurrency, v, err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv(EnvRedpandaBrokers); v != "" {
		c.RedpandaBrokers = splitList(v)
	}
	return nil
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.TailLines < 0 {
		return fmt.Errorf("tail lines must not be negative, got %d", c.TailLines)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.OutputDir == "" {
		return errors.New("output directory must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info":
	default:
		return fmt.Errorf("unknown log level %q (use debug or info)", c.LogLevel)
	}
	return nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
