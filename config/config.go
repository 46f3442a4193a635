package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL  string `yaml:"database_url"`
	ServerPort   string `yaml:"server_port"`
	APIUsername  string `yaml:"api_username"`
	APIPassword  string `yaml:"api_password"`
	SyncWorkers  int    `yaml:"sync_workers"`
	SyncCron     string `yaml:"sync_cron"` // empty disables the scheduled sync
	TimezoneName string `yaml:"timezone"`
	MaxFeedBytes int64  `yaml:"max_feed_bytes"`

	// Operator alerts; both empty disables the bot
	TelegramToken string `yaml:"telegram_bot_token"`
	AlertChatID   int64  `yaml:"alert_chat_id"`

	Timezone *time.Location `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		DatabaseURL:  "./data/agendasync.db",
		ServerPort:   "8080",
		SyncWorkers:  4,
		SyncCron:     "*/30 * * * *",
		TimezoneName: "UTC",
		MaxFeedBytes: 10 << 20,
	}
}

// Load reads the optional YAML file named by AGENDA_CONFIG, then applies
// environment variables on top of it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("AGENDA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.ServerPort = v
	}
	if v := os.Getenv("API_USERNAME"); v != "" {
		cfg.APIUsername = v
	}
	if v := os.Getenv("API_PASSWORD"); v != "" {
		cfg.APIPassword = v
	}
	if v, ok := os.LookupEnv("SYNC_CRON"); ok {
		cfg.SyncCron = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.TimezoneName = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}

	if v := os.Getenv("SYNC_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("SYNC_WORKERS must be a positive number")
		}
		cfg.SyncWorkers = n
	}
	if v := os.Getenv("MAX_FEED_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("MAX_FEED_BYTES must be a positive number")
		}
		cfg.MaxFeedBytes = n
	}
	if v := os.Getenv("ALERT_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ALERT_CHAT_ID must be a number")
		}
		cfg.AlertChatID = id
	}

	tz, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	if cfg.SyncWorkers < 1 {
		cfg.SyncWorkers = 1
	}
	if (cfg.APIUsername == "") != (cfg.APIPassword == "") {
		return nil, fmt.Errorf("API_USERNAME and API_PASSWORD must be set together")
	}
	if cfg.TelegramToken != "" && cfg.AlertChatID == 0 {
		return nil, fmt.Errorf("ALERT_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	return cfg, nil
}

// APIEnabled reports whether the HTTP API has credentials configured
func (c *Config) APIEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}

func (c *Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

// IsOperator reports whether a Telegram chat may control the bot
func (c *Config) IsOperator(chatID int64) bool {
	return c.AlertChatID != 0 && chatID == c.AlertChatID
}
