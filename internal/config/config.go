// ABOUTME: Configuration loading and parsing for picohost-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxMessageLength is the largest accepted message, in characters after trimming.
// It is fixed and not configurable.
const MaxMessageLength = 16_384

// Defaults applied to fields left unset in the config file.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 18790
	DefaultRequestTimeout  = 120 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultBusBuffer       = 64
	DefaultAgentProvider   = "echo"
	DefaultAgentWorkers    = 4
	DefaultAgentTimeout    = 110 * time.Second
	DefaultAgentMaxTokens  = 1024
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultMetricsPath     = "/metrics"
)

// Config represents the complete picohost-gateway configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Bus     BusConfig     `yaml:"bus"`
	Agent   AgentConfig   `yaml:"agent"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the HTTP listen address
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GatewayConfig holds request handling timing configuration
type GatewayConfig struct {
	RequestTimeout  time.Duration `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RequestTimeoutRaw  string `yaml:"request_timeout"`
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// BusConfig sizes the in-process message bus queues
type BusConfig struct {
	InboundBuffer  int `yaml:"inbound_buffer"`
	OutboundBuffer int `yaml:"outbound_buffer"`
}

// AgentConfig selects and tunes the agent provider
type AgentConfig struct {
	Provider     string `yaml:"provider"` // "echo" or "anthropic"
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxTokens    int64  `yaml:"max_tokens"`
	Workers      int    `yaml:"workers"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML, applying the same steps as Load.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := newConfig()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// newConfig returns a Config with the defaults that a zero value cannot
// express. YAML decoding overwrites them only when the key is present.
func newConfig() *Config {
	return &Config{Metrics: MetricsConfig{Enabled: true}}
}

// applyDefaults fills zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Gateway.RequestTimeout == 0 {
		cfg.Gateway.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Gateway.ShutdownTimeout == 0 {
		cfg.Gateway.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Bus.InboundBuffer == 0 {
		cfg.Bus.InboundBuffer = DefaultBusBuffer
	}
	if cfg.Bus.OutboundBuffer == 0 {
		cfg.Bus.OutboundBuffer = DefaultBusBuffer
	}
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = DefaultAgentProvider
	}
	if cfg.Agent.Workers == 0 {
		cfg.Agent.Workers = DefaultAgentWorkers
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = DefaultAgentTimeout
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = DefaultAgentMaxTokens
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Gateway.RequestTimeout < 0 {
		return fmt.Errorf("gateway.request_timeout must be positive")
	}
	if c.Gateway.ShutdownTimeout < 0 {
		return fmt.Errorf("gateway.shutdown_timeout must be positive")
	}
	if c.Bus.InboundBuffer < 0 || c.Bus.OutboundBuffer < 0 {
		return fmt.Errorf("bus buffers must not be negative")
	}

	switch c.Agent.Provider {
	case "echo":
	case "anthropic":
		if c.Agent.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
			return fmt.Errorf("agent.api_key is required for the anthropic provider (or set ANTHROPIC_API_KEY)")
		}
	default:
		return fmt.Errorf("agent.provider must be \"echo\" or \"anthropic\", got %q", c.Agent.Provider)
	}
	if c.Agent.Workers < 0 {
		return fmt.Errorf("agent.workers must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Gateway.RequestTimeoutRaw != "" {
		cfg.Gateway.RequestTimeout, err = time.ParseDuration(cfg.Gateway.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Gateway.RequestTimeoutRaw, err)
		}
	}

	if cfg.Gateway.ShutdownTimeoutRaw != "" {
		cfg.Gateway.ShutdownTimeout, err = time.ParseDuration(cfg.Gateway.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Gateway.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Agent.TimeoutRaw != "" {
		cfg.Agent.Timeout, err = time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
	}

	return nil
}

// DefaultYAML is the commented config written by `picohost-gateway init`.
const DefaultYAML = `# picohost-gateway configuration

server:
  host: "0.0.0.0"
  port: 18790

gateway:
  # How long POST /agent waits for the agent before answering 504.
  request_timeout: "120s"
  shutdown_timeout: "5s"

bus:
  inbound_buffer: 64
  outbound_buffer: 64

agent:
  # "echo" repeats messages back; "anthropic" calls the Messages API.
  provider: "echo"
  model: ""
  api_key: "${ANTHROPIC_API_KEY}"
  system_prompt: ""
  max_tokens: 1024
  workers: 4
  timeout: "110s"

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"
`
