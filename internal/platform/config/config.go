package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string
	PostgresDSN   string
	ArchivePath   string
	MetricsPort   string
	WatchInterval time.Duration
	RelayInterval time.Duration
	RelayBatch    int

	EnablePeriodWatcher bool
	EnableOutboxRelay   bool
}

func Load() (Config, error) {
	// Local development reads .env; absence is not an error.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "agora"
	}

	archive := os.Getenv("RESULT_ARCHIVE_PATH")
	if archive == "" {
		archive = "ballot-results.db"
	}

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9100"
	}

	return Config{
		ServiceName:   service,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		ArchivePath:   archive,
		MetricsPort:   metricsPort,
		WatchInterval: envDuration("PERIOD_WATCH_INTERVAL", 15*time.Second),
		RelayInterval: envDuration("OUTBOX_RELAY_INTERVAL", 5*time.Second),
		RelayBatch:    envInt("OUTBOX_RELAY_BATCH", 100),

		EnablePeriodWatcher: envBool("ENABLE_PERIOD_WATCHER", true),
		EnableOutboxRelay:   envBool("ENABLE_OUTBOX_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
