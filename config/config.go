package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment. Discord
// fields are optional; notifications are disabled when the token is empty.
type Config struct {
	DatabaseURL         string
	DataGolfAPIKey      string
	Port                string
	SettleCronSpec      string
	SettleWorkers       int
	GatewayTimeout      time.Duration
	CompletionThreshold float64
	DiscordBotToken     string
	DiscordChannelID    string
}

// Load reads the environment, optionally seeded from a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set in environment variables")
	}

	apiKey := os.Getenv("DATAGOLF_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("DATAGOLF_API_KEY not set in environment variables")
	}

	workers, err := strconv.Atoi(getEnv("SETTLE_WORKERS", "4"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("SETTLE_WORKERS must be a positive integer")
	}

	threshold, err := strconv.ParseFloat(getEnv("COMPLETION_THRESHOLD", "0.8"), 64)
	if err != nil || threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("COMPLETION_THRESHOLD must be a number in (0, 1]")
	}

	gatewayTimeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}

	cfg := &Config{
		DatabaseURL:         databaseURL,
		DataGolfAPIKey:      apiKey,
		Port:                getEnv("PORT", "8080"),
		SettleCronSpec:      getEnv("SETTLE_CRON", "0 */10 * * * *"),
		SettleWorkers:       workers,
		GatewayTimeout:      gatewayTimeout,
		CompletionThreshold: threshold,
		DiscordBotToken:     os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelID:    os.Getenv("DISCORD_CHANNEL_ID"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
