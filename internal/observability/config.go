package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/atelier/internal/config"
)

// Config groups the logging and telemetry settings of the storefront process.
type Config struct {
	Service   ServiceInfo
	Log       LogSettings
	Telemetry TelemetrySettings
}

type ServiceInfo struct {
	Name        string
	Environment string
	Version     string
}

type LogSettings struct {
	Level  string
	Format string
}

// TelemetrySettings drives both the OTLP trace and metric exporters.
type TelemetrySettings struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

const (
	defaultServiceName   = "atelier"
	defaultSamplingRatio = 0.1
)

// LoadConfig derives observability settings from the application config.
// OTEL_* and LOG_* variables take precedence so collectors can be
// retargeted without touching the storefront settings.
func LoadConfig(cfg config.Config) Config {
	svc := ServiceInfo{
		Name:        firstNonEmpty(cfg.AppName, defaultServiceName),
		Environment: firstNonEmpty(os.Getenv("DEPLOYMENT_ENV"), cfg.Environment),
		Version:     firstNonEmpty(os.Getenv("SERVICE_VERSION"), cfg.AppVersion),
	}

	log := LogSettings{
		Level:  lower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		Format: lower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")),
	}

	tel := TelemetrySettings{
		Enabled:       envBool("OTEL_ENABLED"),
		Endpoint:      firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
		Protocol:      lower(firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"), os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"), "grpc")),
		SamplingRatio: envRatio("OTEL_SAMPLING_RATIO", defaultSamplingRatio),
	}

	return Config{Service: svc, Log: log, Telemetry: tel}
}

// Debug reports whether verbose logging is wanted: an explicit debug level
// or any non-production deployment.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch lower(c.Service.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func envBool(key string) bool {
	ok, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && ok
}

// envRatio reads a sampling ratio and clamps it to [0, 1].
func envRatio(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
