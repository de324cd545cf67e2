package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runSecret(t *testing.T, secret, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil)
	if header != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", header)
	}
	w := httptest.NewRecorder()

	NewTelegramSecretMiddleware(secret).Handler(next).ServeHTTP(w, req)
	return w, reached
}

func TestTelegramSecretMiddleware(t *testing.T) {
	t.Run("passes a matching token", func(t *testing.T) {
		w, reached := runSecret(t, "s3cret", "s3cret")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, reached)
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		w, reached := runSecret(t, "s3cret", "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, reached)
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		w, reached := runSecret(t, "s3cret", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, reached)
	})

	t.Run("bypasses verification when no secret is configured", func(t *testing.T) {
		w, reached := runSecret(t, "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, reached)
	})
}
