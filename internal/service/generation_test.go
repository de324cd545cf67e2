package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/neirobot/bot-server-go/internal/errors"
)

func completionResponse(text string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
	})
	return string(body)
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns trimmed completion text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var payload chatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "gpt-3.5-turbo", payload.Model)
			require.Len(t, payload.Messages, 2)
			assert.Equal(t, "system", payload.Messages[0].Role)
			assert.Equal(t, "hello", payload.Messages[1].Content)

			w.Write([]byte(completionResponse("  the answer \n")))
		}))
		defer server.Close()

		gen := NewOpenAIGenerator(OpenAIGeneratorOptions{APIKey: "test-key", BaseURL: server.URL})

		text, err := gen.Generate(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, "the answer", text)
	})

	t.Run("fails without api key", func(t *testing.T) {
		gen := NewOpenAIGenerator(OpenAIGeneratorOptions{})

		_, err := gen.Generate(ctx, "hello")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeGeneration, apperrors.GetCode(err))
	})

	t.Run("upstream error status is a generation error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		gen := NewOpenAIGenerator(OpenAIGeneratorOptions{APIKey: "test-key", BaseURL: server.URL})

		_, err := gen.Generate(ctx, "hello")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeGeneration, apperrors.GetCode(err))
	})

	t.Run("malformed response body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		gen := NewOpenAIGenerator(OpenAIGeneratorOptions{APIKey: "test-key", BaseURL: server.URL})

		_, err := gen.Generate(ctx, "hello")
		require.Error(t, err)
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		gen := NewOpenAIGenerator(OpenAIGeneratorOptions{APIKey: "test-key", BaseURL: server.URL})

		_, err := gen.Generate(ctx, "hello")
		require.Error(t, err)
	})

	t.Run("blank completion text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(completionResponse("   ")))
		}))
		defer server.Close()

		gen := NewOpenAIGenerator(OpenAIGeneratorOptions{APIKey: "test-key", BaseURL: server.URL})

		_, err := gen.Generate(ctx, "hello")
		require.Error(t, err)
	})

	t.Run("slow upstream is cut off by the timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(completionResponse("too late")))
		}))
		defer server.Close()

		gen := NewOpenAIGenerator(OpenAIGeneratorOptions{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Timeout: 50 * time.Millisecond,
		})

		_, err := gen.Generate(ctx, "hello")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeGeneration, apperrors.GetCode(err))
	})
}
