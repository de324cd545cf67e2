package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/neirobot/bot-server-go/internal/errors"
)

// Generator produces a text response for a user prompt. A failed call is
// terminal for that request; callers do not retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const defaultSystemPrompt = "You are an AI assistant. Answer concisely."

type OpenAIGeneratorOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// OpenAIGenerator calls an OpenAI-style chat-completions endpoint. The
// whole call is bounded by the configured timeout so a slow upstream can
// never leave a ledger entry pending.
type OpenAIGenerator struct {
	apiKey       string
	model        string
	baseURL      string
	systemPrompt string
	timeout      time.Duration
	client       *http.Client
}

func NewOpenAIGenerator(opts OpenAIGeneratorOptions) *OpenAIGenerator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAIGenerator{
		apiKey:       opts.APIKey,
		model:        model,
		baseURL:      baseURL,
		systemPrompt: systemPrompt,
		timeout:      timeout,
		client:       client,
	}
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", apperrors.Generation(fmt.Errorf("api key not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	payload := chatCompletionRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: g.systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: 500,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Generation(fmt.Errorf("encode request: %w", err))
	}

	endpoint := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Generation(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("generation request failed")
		return "", apperrors.Generation(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("generation request rejected")
		return "", apperrors.Generation(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.Generation(fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", apperrors.Generation(fmt.Errorf("no choices in response"))
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", apperrors.Generation(fmt.Errorf("empty response"))
	}

	log.Debug().Dur("elapsed", elapsed).Int("length", len(text)).Msg("generation completed")
	return text, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
