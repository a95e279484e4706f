// Package config loads and validates the server's environment configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration for the core game-session
// server, all sourced from BANTER_BUS_CORE_API_-prefixed variables.
type Config struct {
	// Catalog service (component C).
	ManagementAPIURL  string
	ManagementAPIPort string

	// Player grace period (component D).
	DisconnectTimerInSeconds int

	// Redis backplane (component A, multi-instance deployment).
	MessageQueueHost     string
	MessageQueuePort     string
	MessageQueuePassword string

	// Fibbing It engine config (component F).
	QuestionsPerRound int

	// Logging-exclusion policy (§4.1).
	LogResponseExcludeAttr map[string][]string

	// Document store (component B). Not in the original env list; added
	// because a document store is part of the persistence contract (§6).
	MongoURI      string
	MongoDatabase string

	// Ambient: listen port, log level, WS connect rate limit, CORS.
	Port               string
	LogLevel           string
	RateLimitWsConnect string
	AllowedOrigins     []string
}

// Load validates all required environment variables and returns a Config.
// Returns an error accumulating every problem found, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.ManagementAPIURL = os.Getenv("BANTER_BUS_CORE_API_MANAGEMENT_API_URL")
	if cfg.ManagementAPIURL == "" {
		errs = append(errs, "BANTER_BUS_CORE_API_MANAGEMENT_API_URL is required")
	}
	cfg.ManagementAPIPort = os.Getenv("BANTER_BUS_CORE_API_MANAGEMENT_API_PORT")

	cfg.MessageQueueHost = os.Getenv("BANTER_BUS_CORE_API_MESSAGE_QUEUE_HOST")
	if cfg.MessageQueueHost == "" {
		errs = append(errs, "BANTER_BUS_CORE_API_MESSAGE_QUEUE_HOST is required")
	}
	cfg.MessageQueuePort = os.Getenv("BANTER_BUS_CORE_API_MESSAGE_QUEUE_PORT")
	cfg.MessageQueuePassword = os.Getenv("BANTER_BUS_CORE_API_MESSAGE_QUEUE_PASSWORD")

	cfg.MongoURI = os.Getenv("BANTER_BUS_CORE_API_MONGO_URI")
	if cfg.MongoURI == "" {
		errs = append(errs, "BANTER_BUS_CORE_API_MONGO_URI is required")
	}
	cfg.MongoDatabase = getEnvOrDefault("BANTER_BUS_CORE_API_MONGO_DATABASE", "banter_bus")

	cfg.Port = os.Getenv("BANTER_BUS_CORE_API_PORT")
	if cfg.Port == "" {
		errs = append(errs, "BANTER_BUS_CORE_API_PORT is required")
	} else if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("BANTER_BUS_CORE_API_PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.DisconnectTimerInSeconds = getEnvIntOrDefault("BANTER_BUS_CORE_API_DISCONNECT_TIMER_IN_SECONDS", 300)
	cfg.QuestionsPerRound = getEnvIntOrDefault("BANTER_BUS_CORE_API_QUESTIONS_PER_ROUND", 3)

	cfg.LogLevel = getEnvOrDefault("BANTER_BUS_CORE_API_LOG_LEVEL", "info")
	cfg.RateLimitWsConnect = getEnvOrDefault("BANTER_BUS_CORE_API_RATE_LIMIT_WS_CONNECT", "100-M")

	if raw := os.Getenv("BANTER_BUS_CORE_API_ALLOWED_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	// LOG_RESPONSE_EXCLUDE_ATTR ships a sensible default matching the
	// original's avatar-redaction behavior; it is not reasonably expressible
	// as a single flat env var so it is fixed here rather than parsed.
	cfg.LogResponseExcludeAttr = map[string][]string{
		"players": {"avatar"},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"management_api_url", cfg.ManagementAPIURL,
		"mongo_uri", redactSecret(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabase,
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"disconnect_timer_in_seconds", cfg.DisconnectTimerInSeconds,
		"questions_per_round", cfg.QuestionsPerRound,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

// redactSecret shows only a short prefix of a connection string that may
// embed credentials.
func redactSecret(secret string) string {
	if len(secret) <= 12 {
		return "***"
	}
	return secret[:12] + "***"
}
