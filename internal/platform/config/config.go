package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	RedisURL    string

	FeedURL     string
	FeedTimeout time.Duration

	JWTSigningKey string

	ConsumerRetryAttempts int
	ConsumerRetryDelay    time.Duration
	DedupeCapacity        int
	DedupeTrimTo          int
	ShutdownGrace         time.Duration

	// Resync makes the worker process replay the full event log through the
	// recovery projector before serving anything else.
	Resync bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "reefwatch"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	feedURL := os.Getenv("FEED_URL")
	if feedURL == "" {
		feedURL = "https://public.opendatasoft.com/api/explore/v2.1/catalog/datasets/global-shark-attack/records"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisURL:    os.Getenv("REDIS_URL"),

		FeedURL:     feedURL,
		FeedTimeout: envDuration("FEED_TIMEOUT", 10*time.Second),

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),

		ConsumerRetryAttempts: envInt("CONSUMER_RETRY_ATTEMPTS", 3),
		ConsumerRetryDelay:    envDuration("CONSUMER_RETRY_DELAY", time.Second),
		DedupeCapacity:        envInt("DEDUPE_CAPACITY", 10000),
		DedupeTrimTo:          envInt("DEDUPE_TRIM_TO", 5000),
		ShutdownGrace:         envDuration("SHUTDOWN_GRACE", 10*time.Second),

		Resync: envBool("RESYNC", false),
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
	if err != nil {
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
	if err != nil {
		return fallback
	}
	return value
}
