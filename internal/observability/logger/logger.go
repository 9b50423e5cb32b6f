package logger

import (
	"context"
	"strings"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/auditcontext"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLogger builds the process logger. Production gets JSON output,
// everything else the development console encoder.
func NewLogger(environment string) (*zap.Logger, error) {
	var log *zap.Logger
	var err error
	if strings.EqualFold(environment, "production") {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// FromContext returns the global logger enriched with the request ID
// and the active trace/span IDs when a recording span is present.
func FromContext(ctx context.Context) *zap.Logger {
	log := zap.L()
	if ctx == nil {
		return log
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}
	span := trace.SpanContextFromContext(ctx)
	if !span.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", span.TraceID().String()),
		zap.String("span_id", span.SpanID().String()),
	)
}

// Module provides the zap logger and flushes it on shutdown.
var Module = fx.Module("observability.logger",
	fx.Provide(func(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
		log, err := NewLogger(cfg.Environment)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = log.Sync()
				return nil
			},
		})
		return log, nil
	}),
)
