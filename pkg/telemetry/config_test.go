package telemetry

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "carrier-pigeon"
		}},
		{"bad sampling rate", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	// All recorders must be safe to call when disabled.
	m.RecordBatchStarted()
	m.RecordBatchCompleted("completed", time.Second)
	m.RecordOperation("create", "vendor", "succeeded", time.Millisecond)
	m.RecordPolicyDemotion("create", "core_company")
	m.RecordCountdownShown()
	m.RecordError("transient")
}

func TestMetricsEnabledRegisters(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:       true,
		ListenAddress: ":0",
		Path:          "/metrics",
		Namespace:     "ledgersmith",
	})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	m.RecordBatchStarted()
	m.RecordOperation("create", "vendor", "succeeded", time.Millisecond)

	if m.Handler() == nil {
		t.Fatal("expected metrics handler")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	if logger.GetLevel().String() != "debug" {
		t.Errorf("expected debug level, got %s", logger.GetLevel())
	}
}
