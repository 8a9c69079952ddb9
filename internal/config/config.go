package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DiscordBotToken  string
	DiscordChannelId string

	Database DatabaseConfig
	Offline  OfflineConfig

	KeywordsFile  string
	HealthAddr    string
	LogLevel      string
	DefaultUserID string
}

type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type OfflineConfig struct {
	Enabled        bool
	Path           string
	ReplayInterval time.Duration
}

// Load reads the configuration from the environment. Discord settings are
// checked separately by ValidateDiscord since only the bot needs them.
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	replayInterval, err := getDurationEnv("OFFLINE_REPLAY_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelId: os.Getenv("DISCORD_CHANNEL_ID"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:     getEnv("DB_PATH", "transaction.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wallet"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Offline: OfflineConfig{
			Enabled:        getBoolEnv("OFFLINE_QUEUE_ENABLED", true),
			Path:           getEnv("OFFLINE_QUEUE_PATH", "offline-queue.db"),
			ReplayInterval: replayInterval,
		},
		KeywordsFile:  getEnv("CATEGORY_KEYWORDS_FILE", ""),
		HealthAddr:    getEnv("HEALTH_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DefaultUserID: getEnv("DEFAULT_USER_ID", "local"),
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if replayInterval <= 0 {
		return nil, fmt.Errorf("OFFLINE_REPLAY_INTERVAL must be positive")
	}

	return cfg, nil
}

// ValidateDiscord checks the settings the bot cannot run without.
func (c *Config) ValidateDiscord() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("bot token is not set")
	}
	if c.DiscordChannelId == "" {
		return fmt.Errorf("channel ID is not set")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
