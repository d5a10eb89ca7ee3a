package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode             string
	Port             string
	Environment      string
	LotCapacity      int
	OptimizeSchedule string
	OTelServiceName  string
	OTelEndpoint     string
	OTelDisabled     bool
}

// Load reads the environment, after merging a local .env file when one
// exists. Variables already set win over the file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Mode:             envOr("APP_MODE", "cli"),
		Port:             envOr("APP_PORT", "8080"),
		Environment:      envOr("APP_ENV", "development"),
		LotCapacity:      envOrInt("LOT_CAPACITY", 0),
		OptimizeSchedule: envOr("OPTIMIZE_SCHEDULE", "@every 5m"),
		OTelServiceName:  envOr("OTEL_SERVICE_NAME", "smart-parking"),
		OTelEndpoint:     envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		OTelDisabled:     envOrBool("OTEL_SDK_DISABLED", false),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
