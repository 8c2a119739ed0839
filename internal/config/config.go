package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/models"
)

// Config holds all application configuration
type Config struct {
	TwelveAPIKey string `env:"TWELVE_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	Symbol       string `env:"SYMBOL" envDefault:"BTC/USD"`
	Interval     string `env:"INTERVAL" envDefault:"15min"`
	CandleCount  int    `env:"CANDLE_COUNT" envDefault:"100"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	RequestTimeout int           `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	CycleInterval  time.Duration `env:"CYCLE_INTERVAL" envDefault:"5m"`
	AdvisorTimeout time.Duration `env:"ADVISOR_TIMEOUT" envDefault:"30s"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"file"`
	DataDir      string `env:"DATA_DIR" envDefault:"data"`
	ChartDir     string `env:"CHART_DIR" envDefault:"data/charts"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"data/signals.db"`
	DBHost       string `env:"DB_HOST" envDefault:"localhost"`
	DBPort       string `env:"DB_PORT" envDefault:"5432"`
	DBUser       string `env:"DB_USER"`
	DBPassword   string `env:"DB_PASSWORD"`
	DBName       string `env:"DB_NAME" envDefault:"signalbot"`
	DBSSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`
	// Answer /last, /stats, /run in the configured chat.
	TelegramCommands bool `env:"TELEGRAM_COMMANDS" envDefault:"true"`

	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	ProfilePath string `env:"PROFILE_PATH" envDefault:"profile.yaml"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.TwelveAPIKey = os.Getenv("TWELVE_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Symbol = getEnvWithDefault("SYMBOL", "BTC/USD")
	cfg.Interval = models.NormalizeInterval(getEnvWithDefault("INTERVAL", "15min"))
	cfg.CandleCount = getEnvIntWithDefault("CANDLE_COUNT", 100)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")

	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.CycleInterval = getEnvDurationWithDefault("CYCLE_INTERVAL", 5*time.Minute)
	cfg.AdvisorTimeout = getEnvDurationWithDefault("ADVISOR_TIMEOUT", 30*time.Second)

	cfg.StoreBackend = getEnvWithDefault("STORE_BACKEND", "file")
	cfg.DataDir = getEnvWithDefault("DATA_DIR", "data")
	cfg.ChartDir = getEnvWithDefault("CHART_DIR", cfg.DataDir+"/charts")
	cfg.SQLitePath = getEnvWithDefault("SQLITE_PATH", cfg.DataDir+"/signals.db")
	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "signalbot")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvIntWithDefault("REDIS_DB", 0)

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0)
	cfg.TelegramCommands = getEnvBoolWithDefault("TELEGRAM_COMMANDS", true)

	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")
	cfg.ProfilePath = getEnvWithDefault("PROFILE_PATH", "profile.yaml")

	return &cfg, nil
}

// RequestTimeoutDuration returns REQUEST_TIMEOUT as a duration.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// getEnvDurationWithDefault accepts Go durations ("90s", "5m") or plain seconds.
func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
