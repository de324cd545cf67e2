package handler

import (
	"net/http"
	"time"

	"github.com/neirobot/bot-server-go/internal/httputil"
	"github.com/neirobot/bot-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func formatUser(user *model.User) map[string]any {
	return map[string]any{
		"telegramId":        user.TelegramID,
		"username":          user.Username,
		"firstName":         user.FirstName,
		"isPremium":         user.IsPremium,
		"premiumUntil":      formatTime(user.PremiumUntil),
		"freeRequestsUsed":  user.FreeRequestsUsed,
		"freeRequestsLimit": user.FreeRequestsLimit,
		"lastResetAt":       user.LastResetAt.Format(time.RFC3339),
		"createdAt":         user.CreatedAt.Format(time.RFC3339),
	}
}
