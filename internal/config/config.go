package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Discord configuration
	BotToken      string
	CommandPrefix string

	// Database configuration
	DatabasePath string

	// Proxy configuration
	WebhookSweepInterval time.Duration

	// Health API configuration
	APIPort   int
	APIEnable bool
}

func Load() *Config {
	apiPort, _ := strconv.Atoi(getEnv("API_PORT", "5000"))
	apiEnable, _ := strconv.ParseBool(getEnv("API_ENABLE", "true"))

	sweepInterval, err := time.ParseDuration(getEnv("WEBHOOK_SWEEP_INTERVAL", "5m"))
	if err != nil || sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}

	return &Config{
		BotToken:      getEnv("BOT_TOKEN", ""),
		CommandPrefix: getEnv("COMMAND_PREFIX", "!"),

		DatabasePath: getEnv("DATABASE_PATH", "./proxybot.db"),

		WebhookSweepInterval: sweepInterval,

		APIPort:   apiPort,
		APIEnable: apiEnable,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
