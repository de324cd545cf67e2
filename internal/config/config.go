package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

// TelegramConfig is the subset needed to talk to the Bot API. The
// setwebhook CLI loads only this, so it runs without the database and Redis
// it never touches.
type TelegramConfig struct {
	TelegramBotToken   string `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramAPIBaseURL string `env:"TELEGRAM_API_BASE_URL" envDefault:"https://api.telegram.org"`
	WebhookSecret      string `env:"TELEGRAM_WEBHOOK_SECRET"`
	WebhookURL         string `env:"TELEGRAM_WEBHOOK_URL"`
}

type Config struct {
	TelegramConfig

	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel           string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	AdminToken            string `env:"ADMIN_TOKEN"`
	FreeRequestsLimit     int    `env:"FREE_REQUESTS_LIMIT" envDefault:"2"`
	GenerationTimeoutSecs int    `env:"GENERATION_TIMEOUT_SECONDS" envDefault:"25"`
	SendTimeoutSecs       int    `env:"SEND_TIMEOUT_SECONDS" envDefault:"5"`
	FloodLimitPerMin      int    `env:"FLOOD_LIMIT_PER_MINUTE" envDefault:"20"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSecs) * time.Second
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSecs) * time.Second
}

func (c *Config) Validate(isProduction bool) error {
	if c.FreeRequestsLimit < 0 {
		return fmt.Errorf("FREE_REQUESTS_LIMIT must not be negative")
	}

	if isProduction {
		if c.WebhookSecret == "" {
			log.Warn().Msg("TELEGRAM_WEBHOOK_SECRET is empty in production: webhook secret verification disabled")
		}
		if c.AdminToken == "" {
			log.Warn().Msg("ADMIN_TOKEN is empty in production: admin API disabled")
		}
		if c.OpenAIAPIKey == "" {
			log.Warn().Msg("OPENAI_API_KEY is empty in production: generation requests will fail")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func LoadTelegram() (*TelegramConfig, error) {
	var cfg TelegramConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
