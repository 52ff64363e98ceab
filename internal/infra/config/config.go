package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DiscordToken   string
	DatabaseURL    string
	LogLevel       string
	Environment    string
	CommandPrefix  string
	PointsPerMsg   int64         // points awarded per counted message
	PointsCooldown time.Duration // minimum gap between counted messages per user
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CommandPrefix = os.Getenv("COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}

	pointsStr := os.Getenv("POINTS_PER_MESSAGE")
	if pointsStr == "" {
		cfg.PointsPerMsg = 1
	} else {
		points, err := strconv.ParseInt(pointsStr, 10, 64)
		if err != nil || points < 0 {
			return nil, fmt.Errorf("invalid POINTS_PER_MESSAGE: %q", pointsStr)
		}
		cfg.PointsPerMsg = points
	}

	cooldownStr := os.Getenv("POINTS_COOLDOWN_SECONDS")
	if cooldownStr == "" {
		cfg.PointsCooldown = 60 * time.Second
	} else {
		seconds, err := strconv.Atoi(cooldownStr)
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("invalid POINTS_COOLDOWN_SECONDS: %q", cooldownStr)
		}
		cfg.PointsCooldown = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
