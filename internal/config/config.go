// ABOUTME: Configuration loading and parsing for loopchat
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete loopchat configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// DatabaseConfig holds database configuration. An empty path selects the
// in-memory store (state is lost on exit).
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DispatchConfig holds message dispatch configuration
type DispatchConfig struct {
	// Client selects the agent client: "simulated" or "webhook"
	Client string `yaml:"client"`
	// Pending selects the pending-flag scope: "global" (legacy) or "per-chat"
	Pending string `yaml:"pending"`

	WebhookTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	WebhookTimeoutRaw string `yaml:"webhook_timeout"`
}

// Agent client selector values
const (
	ClientSimulated = "simulated"
	ClientWebhook   = "webhook"
)

// Default returns a usable configuration for runs without a config file:
// in-memory storage, simulated agent client, legacy global pending flag.
func Default() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Dispatch: DispatchConfig{Client: ClientSimulated, Pending: "global", WebhookTimeout: 30 * time.Second},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields hold supported values.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Dispatch.Client {
	case ClientSimulated, ClientWebhook:
	default:
		return fmt.Errorf("dispatch.client must be %q or %q, got %q",
			ClientSimulated, ClientWebhook, c.Dispatch.Client)
	}

	switch c.Dispatch.Pending {
	case "global", "per-chat":
	default:
		return fmt.Errorf("dispatch.pending must be \"global\" or \"per-chat\", got %q", c.Dispatch.Pending)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Dispatch.WebhookTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Dispatch.WebhookTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing webhook_timeout %q: %w", cfg.Dispatch.WebhookTimeoutRaw, err)
		}
		cfg.Dispatch.WebhookTimeout = d
	}

	return nil
}
