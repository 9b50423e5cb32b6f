package observability

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/logger"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/metrics"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(func(cfg config.Config) tracing.Config {
		return tracing.Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      cfg.Tracing.ServiceName,
			ServiceVersion:   cfg.Tracing.ServiceVersion,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}
	}),
	fx.Provide(tracing.NewProvider),
	fx.Provide(func(cfg config.Config) metrics.Config {
		return metrics.Config{
			ServiceName: cfg.Tracing.ServiceName,
			Environment: cfg.Environment,
		}
	}),
	fx.Provide(metrics.NewMeterProvider),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(func(cfg metrics.Config) *metrics.AllowanceMetrics {
		return metrics.AllowanceWithConfig(cfg)
	}),
	fx.Invoke(func(log *zap.Logger, provider *sdktrace.TracerProvider) {
		log.Named("observability").Debug("observability initialized",
			zap.Bool("tracing", provider != nil))
	}),
)
