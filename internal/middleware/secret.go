package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/neirobot/bot-server-go/internal/audit"
	"github.com/neirobot/bot-server-go/internal/util"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramSecretMiddleware verifies the secret token Telegram echoes back
// on every webhook delivery when one was supplied to setWebhook.
type TelegramSecretMiddleware struct {
	secret string
}

func NewTelegramSecretMiddleware(secret string) *TelegramSecretMiddleware {
	return &TelegramSecretMiddleware{secret: secret}
}

func (m *TelegramSecretMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("webhook secret verification bypassed: TELEGRAM_WEBHOOK_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(secretTokenHeader)
		if !util.ConstantTimeEqual(token, m.secret) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventWebhookRejected})
			log.Warn().Msg("webhook secret middleware: invalid secret token")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid secret token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
