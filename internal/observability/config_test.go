package observability

import (
	"testing"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"DEPLOYMENT_ENV", "SERVICE_VERSION", "LOG_LEVEL", "LOG_FORMAT", "OTEL_ENABLED",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL",
		"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "OTEL_SAMPLING_RATIO",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig(config.Config{Environment: "production", AppVersion: "1.2.0", OTLPEndpoint: "otel:4317"})

	assert.Equal(t, "atelier", cfg.Service.Name)
	assert.Equal(t, "1.2.0", cfg.Service.Version)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "otel:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.Equal(t, 0.1, cfg.Telemetry.SamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_SAMPLING_RATIO", "4")

	cfg := LoadConfig(config.Config{AppName: "bijoux", Environment: "production"})

	assert.Equal(t, "bijoux", cfg.Service.Name)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http/protobuf", cfg.Telemetry.Protocol)
	assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestDebugInDevelopment(t *testing.T) {
	cfg := Config{Service: ServiceInfo{Environment: "Development"}, Log: LogSettings{Level: "info"}}
	assert.True(t, cfg.Debug())
}
