package observability

import (
	"github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the logger, tracer provider, meters and the SQL log
// policy. Tracing and metrics share one OTLP collector target.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				Service:     cfg.Service.Name,
				Environment: cfg.Service.Environment,
				Version:     cfg.Service.Version,
				Level:       cfg.Log.Level,
				Format:      cfg.Log.Format,
				Debug:       cfg.Debug(),
			}
		},
		func(cfg Config) logger.GormLoggerConfig {
			return logger.DefaultGormLoggerConfig(cfg.Debug())
		},
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.Telemetry.Enabled,
				ServiceName:      cfg.Service.Name,
				ServiceVersion:   cfg.Service.Version,
				Environment:      cfg.Service.Environment,
				ExporterEndpoint: cfg.Telemetry.Endpoint,
				ExporterProtocol: cfg.Telemetry.Protocol,
				SamplingRatio:    cfg.Telemetry.SamplingRatio,
			}
		},
		func(cfg Config) metrics.Config {
			return metrics.Config{
				Enabled:          cfg.Telemetry.Enabled,
				ExporterEndpoint: cfg.Telemetry.Endpoint,
				ExporterProtocol: cfg.Telemetry.Protocol,
				ServiceName:      cfg.Service.Name,
				Environment:      cfg.Service.Environment,
			}
		},
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(
		func(*sdktrace.TracerProvider) {},
		func(cfg metrics.Config) { metrics.SchedulerWithConfig(cfg) },
	),
)
