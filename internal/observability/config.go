package observability

import (
	"strings"

	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/spf13/viper"
)

const defaultSamplingRatio = 0.1

// Config is the observability slice of the service settings. The OTEL_*
// variables win over the app settings so a collector can be swapped without
// touching them.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	Otel OtelConfig
}

type OtelConfig struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", defaultSamplingRatio)

	protocol := lower(v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"))
	if traces := lower(v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	ratio := v.GetFloat64("OTEL_SAMPLING_RATIO")
	if ratio < 0 || ratio > 1 {
		ratio = defaultSamplingRatio
	}

	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "meseboard"
	}

	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:     strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		LogLevel:    lower(v.GetString("LOG_LEVEL")),
		LogFormat:   lower(v.GetString("LOG_FORMAT")),
		Otel: OtelConfig{
			Enabled:       v.GetBool("OTEL_ENABLED"),
			Endpoint:      strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Protocol:      protocol,
			SamplingRatio: ratio,
		},
	}
}

// Debug is true for debug logging or a development environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
