package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported transmission transports
const (
	TransportOTel  = "otel"
	TransportRedis = "redis"
)

// Config holds all configuration options for the agent.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. YAML file overrides (when ConfigFile is set)
//  3. Environment variables (highest priority)
//
// Config is an immutable settings bundle once the agent is initialized:
// it is replaced wholesale on reconfigure, never mutated in place.
type Config struct {
	// Enabled administratively turns the agent on or off. When false the
	// agent runs in silent no-op mode and never contacts a backend.
	Enabled bool `yaml:"enabled" env:"PULSE_ENABLED" default:"true"`

	// ServiceName identifies the instrumented application
	ServiceName string `yaml:"service_name" env:"PULSE_SERVICE_NAME" default:"pulse-app"`

	// Environment is the deployment environment (development, staging, production)
	Environment string `yaml:"environment" env:"PULSE_ENVIRONMENT" default:"development"`

	// Transport selects the backend implementation: "otel" or "redis"
	Transport string `yaml:"transport" env:"PULSE_TRANSPORT" default:"otel"`

	// Endpoint is the collector address. For the otel transport this is an
	// OTLP gRPC endpoint (host:port); for redis a redis:// URL.
	Endpoint string `yaml:"endpoint" env:"PULSE_ENDPOINT"`

	// QueuePrefix namespaces the redis transport's queues
	QueuePrefix string `yaml:"queue_prefix" env:"PULSE_QUEUE_PREFIX" default:"pulse"`

	// EnableProbes starts the periodic probe scheduler after initialization
	EnableProbes bool `yaml:"enable_probes" env:"PULSE_ENABLE_PROBES" default:"true"`

	// ProbeInterval is the fixed tick interval of the probe scheduler
	ProbeInterval time.Duration `yaml:"probe_interval" env:"PULSE_PROBE_INTERVAL" default:"60s"`

	// ConfigFile points at a YAML file overlaid on top of defaults. When
	// WatchConfig is true the agent watches it and reconfigures on change.
	ConfigFile  string `yaml:"-" env:"PULSE_CONFIG_FILE"`
	WatchConfig bool   `yaml:"watch_config" env:"PULSE_WATCH_CONFIG"`

	// LogLevel controls the operator log (DEBUG, INFO, WARN, ERROR)
	LogLevel string `yaml:"log_level" env:"PULSE_LOG_LEVEL" default:"INFO"`

	// DevMode makes the otel transport export to stdout instead of a
	// collector, for offline development
	DevMode bool `yaml:"dev_mode" env:"PULSE_DEV_MODE"`
}

// DefaultConfig returns the baseline configuration
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		ServiceName:   "pulse-app",
		Environment:   "development",
		Transport:     TransportOTel,
		QueuePrefix:   "pulse",
		EnableProbes:  true,
		ProbeInterval: 60 * time.Second,
		LogLevel:      "INFO",
	}
}

// LoadConfig builds a configuration with full three-layer priority:
// defaults, then the YAML file at path (if non-empty), then environment
// variables. This is also what Reconfigure re-runs, so edits to the file or
// environment are picked up on reload.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("PULSE_CONFIG_FILE")
	}
	if path != "" {
		var err error
		cfg, err = cfg.WithFileOverrides(path)
		if err != nil {
			return cfg, err
		}
		cfg.ConfigFile = path
	}
	return cfg.WithEnvOverrides(), nil
}

// fileConfig mirrors Config with pointer fields so only keys present in the
// YAML document override the base.
type fileConfig struct {
	Enabled       *bool   `yaml:"enabled"`
	ServiceName   *string `yaml:"service_name"`
	Environment   *string `yaml:"environment"`
	Transport     *string `yaml:"transport"`
	Endpoint      *string `yaml:"endpoint"`
	QueuePrefix   *string `yaml:"queue_prefix"`
	EnableProbes  *bool   `yaml:"enable_probes"`
	ProbeInterval *string `yaml:"probe_interval"`
	WatchConfig   *bool   `yaml:"watch_config"`
	LogLevel      *string `yaml:"log_level"`
	DevMode       *bool   `yaml:"dev_mode"`
}

// WithFileOverrides overlays a YAML file on top of the receiver
func (c Config) WithFileOverrides(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, NewAgentError("config.Load", "config", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return c, NewAgentError("config.Parse", "config", fmt.Errorf("%w: %v", ErrConfigInvalid, err))
	}

	if f.Enabled != nil {
		c.Enabled = *f.Enabled
	}
	if f.ServiceName != nil {
		c.ServiceName = *f.ServiceName
	}
	if f.Environment != nil {
		c.Environment = *f.Environment
	}
	if f.Transport != nil {
		c.Transport = *f.Transport
	}
	if f.Endpoint != nil {
		c.Endpoint = *f.Endpoint
	}
	if f.QueuePrefix != nil {
		c.QueuePrefix = *f.QueuePrefix
	}
	if f.EnableProbes != nil {
		c.EnableProbes = *f.EnableProbes
	}
	if f.ProbeInterval != nil {
		d, err := time.ParseDuration(*f.ProbeInterval)
		if err != nil {
			return c, NewAgentError("config.Parse", "config",
				fmt.Errorf("%w: probe_interval: %v", ErrConfigInvalid, err))
		}
		c.ProbeInterval = d
	}
	if f.WatchConfig != nil {
		c.WatchConfig = *f.WatchConfig
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.DevMode != nil {
		c.DevMode = *f.DevMode
	}

	return c, nil
}

// WithEnvOverrides overlays PULSE_* environment variables on top of the receiver
func (c Config) WithEnvOverrides() Config {
	if v, ok := envBool("PULSE_ENABLED"); ok {
		c.Enabled = v
	}
	if v := os.Getenv("PULSE_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("PULSE_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PULSE_TRANSPORT"); v != "" {
		c.Transport = v
	}
	if v := os.Getenv("PULSE_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("PULSE_QUEUE_PREFIX"); v != "" {
		c.QueuePrefix = v
	}
	if v, ok := envBool("PULSE_ENABLE_PROBES"); ok {
		c.EnableProbes = v
	}
	if v := os.Getenv("PULSE_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ProbeInterval = d
		}
	}
	if v, ok := envBool("PULSE_WATCH_CONFIG"); ok {
		c.WatchConfig = v
	}
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v, ok := envBool("PULSE_DEV_MODE"); ok {
		c.DevMode = v
	}
	return c
}

// Validate checks the configuration for use. A disabled config is always
// valid: the agent degrades to silent no-op mode without touching a backend.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ServiceName == "" {
		return NewAgentError("config.Validate", "config",
			fmt.Errorf("%w: service_name is required", ErrConfigMissing))
	}

	switch c.Transport {
	case TransportOTel, TransportRedis:
	default:
		return NewAgentError("config.Validate", "config",
			fmt.Errorf("%w: unknown transport %q (expected %q or %q)",
				ErrConfigInvalid, c.Transport, TransportOTel, TransportRedis))
	}

	if c.Transport == TransportRedis && c.Endpoint == "" {
		return NewAgentError("config.Validate", "config",
			fmt.Errorf("%w: endpoint is required for the redis transport", ErrConfigMissing))
	}

	if c.Transport == TransportRedis && !strings.HasPrefix(c.Endpoint, "redis://") &&
		!strings.HasPrefix(c.Endpoint, "rediss://") {
		return NewAgentError("config.Validate", "config",
			fmt.Errorf("%w: redis endpoint must be a redis:// URL, got %q", ErrConfigInvalid, c.Endpoint))
	}

	if c.ProbeInterval <= 0 {
		return NewAgentError("config.Validate", "config",
			fmt.Errorf("%w: probe_interval must be positive, got %s", ErrConfigInvalid, c.ProbeInterval))
	}

	return nil
}

// EndpointOrDefault resolves the effective endpoint for the configured transport
func (c *Config) EndpointOrDefault() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	switch c.Transport {
	case TransportRedis:
		return "redis://localhost:6379"
	default:
		return "localhost:4317"
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}
