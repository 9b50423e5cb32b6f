package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config carries process-level settings for the membership service.
type Config struct {
	Environment string
	HTTPAddr    string
	DatabaseDSN string

	// AdminToken guards the admin override and operator-queue routes.
	AdminToken string

	// Allowance policy knobs.
	CoveredDurationMinutes    int
	CancellationCutoffMinutes int
	ForfeitOnCancel           bool

	WebhookRateLimit  int
	WebhookRateWindow time.Duration

	Tracing TracingConfig
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the environment, with .env as a fallback
// for local development.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: envString("MEMBERSHIP_ENV", "development"),
		HTTPAddr:    envString("MEMBERSHIP_HTTP_ADDR", ":8080"),
		DatabaseDSN: envString("MEMBERSHIP_DATABASE_DSN", ""),
		AdminToken:  envString("MEMBERSHIP_ADMIN_TOKEN", ""),

		CoveredDurationMinutes:    envInt("MEMBERSHIP_COVERED_DURATION_MINUTES", 30),
		CancellationCutoffMinutes: envInt("MEMBERSHIP_CANCELLATION_CUTOFF_MINUTES", 60),
		ForfeitOnCancel:           envBool("MEMBERSHIP_FORFEIT_ON_CANCEL", false),

		WebhookRateLimit:  envInt("MEMBERSHIP_WEBHOOK_RATE_LIMIT", 120),
		WebhookRateWindow: envDuration("MEMBERSHIP_WEBHOOK_RATE_WINDOW", time.Minute),

		Tracing: TracingConfig{
			Enabled:          envBool("MEMBERSHIP_TRACING_ENABLED", false),
			ServiceName:      envString("MEMBERSHIP_TRACING_SERVICE_NAME", "membership"),
			ServiceVersion:   envString("MEMBERSHIP_TRACING_SERVICE_VERSION", "dev"),
			ExporterEndpoint: envString("MEMBERSHIP_TRACING_ENDPOINT", ""),
			ExporterProtocol: envString("MEMBERSHIP_TRACING_PROTOCOL", "grpc"),
			SamplingRatio:    envFloat("MEMBERSHIP_TRACING_SAMPLING_RATIO", 1.0),
		},
	}

	return cfg, nil
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func envString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
