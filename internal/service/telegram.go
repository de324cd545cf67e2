package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/neirobot/bot-server-go/internal/errors"
)

// Sender delivers a text message to a chat. Delivery is fire-and-forget
// from the router's perspective, but failures are reported for logging.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramClient talks to the Telegram Bot API: message delivery for the
// router and webhook registration for the ops CLI.
type TelegramClient struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTelegramClient(token, baseURL string, timeout time.Duration) *TelegramClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TelegramClient{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *TelegramClient) call(ctx context.Context, method string, payload any) (*telegramResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var out telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("%s rejected: %s", method, out.Description)
	}
	return &out, nil
}

func (c *TelegramClient) Send(ctx context.Context, chatID int64, text string) error {
	_, err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		log.Error().Err(err).Int64("chatId", chatID).Msg("message delivery failed")
		return apperrors.Delivery(err)
	}
	return nil
}

// RegisterWebhook points the bot at the given webhook URL. Re-registering
// the same URL is safe; Telegram treats it as an overwrite.
func (c *TelegramClient) RegisterWebhook(ctx context.Context, webhookURL, secret string) error {
	payload := map[string]any{"url": webhookURL}
	if secret != "" {
		payload["secret_token"] = secret
	}
	if _, err := c.call(ctx, "setWebhook", payload); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	return nil
}

// WebhookInfo returns the raw getWebhookInfo result for display.
func (c *TelegramClient) WebhookInfo(ctx context.Context) (json.RawMessage, error) {
	out, err := c.call(ctx, "getWebhookInfo", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("webhook info: %w", err)
	}
	return out.Result, nil
}

var _ Sender = (*TelegramClient)(nil)
