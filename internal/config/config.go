package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// NATSURL empty disables the NATS publisher.
	NATSURL string

	// RedisAddr empty disables the daily start quota.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	DailyStartLimit int64

	// DatabaseURL empty disables the persistent directions cache tier.
	DatabaseURL       string
	DirectionsBaseURL string
	CacheTTL          time.Duration

	FrameInterval time.Duration
	LogLevel      slog.Level
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid REDIS_DB: %q", v)
		}
		cfg.RedisDB = n
	}

	// Daily animation starts per caller
	if v := os.Getenv("DAILY_START_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DAILY_START_LIMIT: %q", v)
		}
		cfg.DailyStartLimit = n
	} else {
		cfg.DailyStartLimit = 100
	}

	cfg.DatabaseURL = firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)

	cfg.DirectionsBaseURL = getenvDefault("DIRECTIONS_BASE_URL", "https://router.project-osrm.org")

	// Directions cache TTL (days)
	if v := os.Getenv("CACHE_TTL_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid CACHE_TTL_DAYS: %q", v)
		}
		cfg.CacheTTL = time.Duration(days) * 24 * time.Hour
	} else {
		cfg.CacheTTL = 30 * 24 * time.Hour
	}

	// Frame interval
	if v := os.Getenv("FRAME_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid FRAME_INTERVAL_MS: %q", v)
		}
		cfg.FrameInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.FrameInterval = 33 * time.Millisecond
	}

	switch strings.ToLower(getenvDefault("LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn", "warning":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q", os.Getenv("LOG_LEVEL"))
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
