// Command setwebhook registers the bot's webhook URL with Telegram and
// prints the current webhook status. Re-running it with the same URL is
// safe; Telegram overwrites the registration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/neirobot/bot-server-go/internal/config"
	"github.com/neirobot/bot-server-go/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	_ = godotenv.Load()

	infoOnly := flag.Bool("info", false, "only print the current webhook status")
	webhookURL := flag.String("url", "", "webhook URL to register (defaults to TELEGRAM_WEBHOOK_URL)")
	flag.Parse()

	cfg, err := config.LoadTelegram()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	client := service.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramAPIBaseURL, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !*infoOnly {
		url := *webhookURL
		if url == "" {
			url = cfg.WebhookURL
		}
		if url == "" {
			log.Fatal().Msg("no webhook URL: pass -url or set TELEGRAM_WEBHOOK_URL")
		}

		if err := client.RegisterWebhook(ctx, url, cfg.WebhookSecret); err != nil {
			log.Fatal().Err(err).Msg("failed to register webhook")
		}
		log.Info().Str("url", url).Msg("webhook registered")
	}

	info, err := client.WebhookInfo(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch webhook info")
	}

	var pretty map[string]any
	if err := json.Unmarshal(info, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println(string(info))
	}
}
