package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level tool configuration, loaded from a YAML file.
type Config struct {
	// Instance is the remote record store connection.
	Instance InstanceConfig `yaml:"instance" validate:"required"`

	// Database is the local persistence settings.
	Database DatabaseConfig `yaml:"database"`

	// Execution controls batch execution behavior.
	Execution ExecutionConfig `yaml:"execution"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// InstanceConfig holds record store connection settings.
type InstanceConfig struct {
	// URL is the record store instance URL.
	URL string `yaml:"url" validate:"required,url"`

	// Username authenticates via basic auth.
	Username string `yaml:"username" validate:"required"`

	// Password authenticates via basic auth. Prefer the
	// LEDGERSMITH_INSTANCE_PASSWORD environment variable over the file.
	Password string `yaml:"password"`

	// Timeout bounds a single table API call.
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds local SQLite settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" validate:"required"`
}

// ExecutionConfig controls batch execution behavior.
type ExecutionConfig struct {
	// StopOnError halts a batch at the first failed operation.
	StopOnError bool `yaml:"stop_on_error"`
}

// TelemetryConfig configures the observability stack.
type TelemetryConfig struct {
	// LogLevel is the zerolog level: trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`

	// LogFormat is "json" or "console".
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=json console"`

	// MetricsEnabled exposes Prometheus metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// MetricsAddr is the metrics listen address.
	MetricsAddr string `yaml:"metrics_addr"`

	// TracingEnabled turns on OpenTelemetry tracing.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TracingExporter is "stdout" or "otlp".
	TracingExporter string `yaml:"tracing_exporter" validate:"omitempty,oneof=stdout otlp"`

	// TracingEndpoint is the OTLP gRPC collector endpoint.
	TracingEndpoint string `yaml:"tracing_endpoint"`
}

// Default returns a configuration with sane defaults applied.
func Default() *Config {
	return &Config{
		Instance: InstanceConfig{
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "ledgersmith.db",
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			MetricsAddr:     ":9090",
			TracingExporter: "stdout",
		},
	}
}

// Load reads, parses, and validates a YAML configuration file. Values
// omitted from the file keep their defaults, and the instance password may
// come from the environment instead of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if env := os.Getenv("LEDGERSMITH_INSTANCE_PASSWORD"); env != "" {
		cfg.Instance.Password = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
