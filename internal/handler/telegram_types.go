package handler

// Telegram Update Types (the subset this bot consumes)

type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

type TelegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *TelegramUser `json:"from,omitempty"`
	Chat      TelegramChat  `json:"chat"`
	Date      int64         `json:"date"`
	Text      string        `json:"text,omitempty"`
}

type TelegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type TelegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Actionable reports whether the update carries a text message from a human
// sender. Anything else (edits, stickers, joins, bot echoes) is acked and
// dropped.
func (u *TelegramUpdate) Actionable() bool {
	if u.Message == nil || u.Message.From == nil {
		return false
	}
	if u.Message.From.IsBot {
		return false
	}
	return u.Message.Text != ""
}
