package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Gateway configures the client side of the NutriSnap HTTP API.
type Gateway struct {
	BaseURL      string        `envconfig:"NUTRISNAP_API_BASE_URL" default:"http://localhost:8000"`
	Timeout      time.Duration `envconfig:"NUTRISNAP_HTTP_TIMEOUT" default:"60s"`
	HistoryLimit int           `envconfig:"NUTRISNAP_HISTORY_LIMIT" default:"20"`
}

// Bot is the configuration of the Telegram client.
type Bot struct {
	Env              string `envconfig:"APP_ENV" default:"development"`
	Port             string `envconfig:"PORT" default:"8080"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	WebhookURL       string `envconfig:"WEBHOOK_URL"`

	Gateway Gateway
}

// Backend is the configuration of the reference API server.
type Backend struct {
	Env          string `envconfig:"APP_ENV" default:"development"`
	Port         string `envconfig:"PORT" default:"8000"`
	DatabaseURL  string `envconfig:"DATABASE_URL" default:"nutrisnap.db"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// AllowedOrigins is a comma-separated list of browser origins.
	AllowedOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
}

// Load reads .env (if present) and the environment into the bot config.
func Load() (*Bot, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var cfg Bot
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is empty")
	}
	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.Gateway.HistoryLimit <= 0 {
		cfg.Gateway.HistoryLimit = 20
	}
	return &cfg, nil
}

// LoadBackend reads .env (if present) and the environment into the backend config.
func LoadBackend() (*Backend, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var cfg Backend
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	cfg.Port = strings.TrimSpace(cfg.Port)
	return &cfg, nil
}

// A missing .env is normal outside local runs.
func loadDotEnv() error {
	err := godotenv.Load(".env")
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}
