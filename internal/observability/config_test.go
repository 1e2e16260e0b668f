package observability

import (
	"testing"

	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsFromAppConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("DEPLOYMENT_ENV", "")

	cfg := LoadConfig(config.Config{AppName: "", AppVersion: "1.2.3", Environment: "production", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, "meseboard", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "collector:4317", cfg.Otel.Endpoint)
	assert.Equal(t, 0.1, cfg.Otel.SamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "4")

	cfg := LoadConfig(config.Config{AppName: "meseboard"})

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http", cfg.Otel.Protocol)
	assert.Equal(t, 0.1, cfg.Otel.SamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestDebugInDevelopment(t *testing.T) {
	assert.True(t, Config{Environment: "Local"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "warn"}.Debug())
}
