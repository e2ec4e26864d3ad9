package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "reviewd", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout.Duration())
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "reviewd",
		OTLPEndpoint:    "collector.internal:4318",
		OTLPProtocol:    "http",
	}, "worker", "1.4.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "reviewd-worker", cfg.ServiceName)
	assert.Equal(t, "worker", cfg.Component)
	assert.Equal(t, "1.4.0", cfg.ServiceVersion)
	assert.Equal(t, "collector.internal:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.False(t, cfg.Insecure)
	require.NoError(t, cfg.Validate())

	defaults := FromObservability(config.ObservabilityConfig{}, "", "")
	assert.Equal(t, "reviewd", defaults.ServiceName)
	assert.Equal(t, "localhost:4317", defaults.Endpoint)
	assert.Equal(t, "0.1.0", defaults.ServiceVersion)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid default config", func(*Config) {}, ""},
		{"disabled config skips validation", func(c *Config) { *c = Config{} }, ""},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, "service_name is required"},
		{"missing service version", func(c *Config) { c.ServiceVersion = "" }, "service_version is required"},
		{"unknown protocol", func(c *Config) { c.Protocol = "udp" }, "protocol must be grpc or http"},
		{"sampling rate too low", func(c *Config) { c.Sampling.Rate = -0.1 }, "sampling.rate must be between 0 and 1"},
		{"sampling rate too high", func(c *Config) { c.Sampling.Rate = 1.1 }, "sampling.rate must be between 0 and 1"},
		{"zero sampling", func(c *Config) { c.Sampling.Rate = 0 }, ""},
		{"invalid metrics export interval", func(c *Config) { c.Metrics.ExportInterval = 0 }, "metrics.export_interval must be positive"},
		{"metrics disabled ignores interval", func(c *Config) { c.Metrics = MetricsConfig{} }, ""},
		{"invalid shutdown timeout", func(c *Config) { c.Shutdown.Timeout = 0 }, "shutdown.timeout must be positive"},
		{"TLS to remote endpoint", func(c *Config) { c.Endpoint = "collector.prod:4317"; c.Insecure = false }, ""},
		{"insecure to remote endpoint", func(c *Config) { c.Endpoint = "collector.prod:4317" }, "insecure connections to remote endpoints are not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		isLocal  bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"collector.prod:4317", false},
		{"192.168.1.1:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.isLocal, cfg.isLocalEndpoint())
		})
	}
}

func TestConfigStripScheme(t *testing.T) {
	assert.Equal(t, "otel.example.com:4318", stripScheme("https://otel.example.com:4318"))
	assert.Equal(t, "localhost:4318", stripScheme("http://localhost:4318"))
	assert.Equal(t, "localhost:4318", stripScheme("localhost:4318"))
}
