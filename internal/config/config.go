package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ReviewModeLocal     = "local"
	ReviewModeDelegated = "delegated"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Review policy
	ReviewMode         string
	ReviewDelaySeconds int

	// External decision service (delegated mode)
	WorkflowWebhookURL    string
	WorkflowWebhookSecret string
	NotifyWorkers         int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		ReviewMode:         getEnvOrDefault("REVIEW_MODE", ReviewModeLocal),
		ReviewDelaySeconds: getEnvAsIntOrDefault("REVIEW_DELAY_SECONDS", 10),

		WorkflowWebhookURL:    getEnvOrDefault("WORKFLOW_WEBHOOK_URL", ""),
		WorkflowWebhookSecret: getEnvOrDefault("WORKFLOW_WEBHOOK_SECRET", ""),
		NotifyWorkers:         getEnvAsIntOrDefault("NOTIFY_WORKERS", 2),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.ReviewMode != ReviewModeLocal && cfg.ReviewMode != ReviewModeDelegated {
		panic(fmt.Sprintf("REVIEW_MODE must be %q or %q, got %q", ReviewModeLocal, ReviewModeDelegated, cfg.ReviewMode))
	}
	if cfg.ReviewMode == ReviewModeDelegated && cfg.WorkflowWebhookURL == "" {
		panic("WORKFLOW_WEBHOOK_URL is required when REVIEW_MODE=delegated")
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
