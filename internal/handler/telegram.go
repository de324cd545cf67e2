package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/neirobot/bot-server-go/internal/errors"
	"github.com/neirobot/bot-server-go/internal/service"
)

// MessageHandler processes one normalized inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, in service.Inbound) error
}

// TelegramHandler is the webhook transport boundary. It validates the
// payload shape, hands the normalized message to the router, and always
// acks Telegram with 200 unless storage itself is down: a non-2xx makes
// Telegram redeliver, which only helps when a retry could succeed.
type TelegramHandler struct {
	bot MessageHandler
}

func NewTelegramHandler(bot MessageHandler) *TelegramHandler {
	return &TelegramHandler{bot: bot}
}

func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var update TelegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// Acked, not rejected: a non-2xx would make Telegram re-POST a body
		// that can never parse.
		log.Warn().Err(err).Msg("invalid telegram webhook payload dropped")
		writeOK(w)
		return
	}

	if !update.Actionable() {
		writeOK(w)
		return
	}

	msg := update.Message
	in := service.Inbound{
		UpdateID:  update.UpdateID,
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
	}

	log.Info().
		Int64("updateId", update.UpdateID).
		Int64("userId", in.UserID).
		Str("text", truncate(in.Text, 50)).
		Msg("received telegram webhook")

	if err := h.bot.Handle(r.Context(), in); err != nil {
		log.Error().Err(err).Int64("updateId", update.UpdateID).Msg("failed to handle update")
		if apperrors.GetCode(err) == apperrors.ErrCodeStorage {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Temporary failure"})
			return
		}
	}

	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
