package model

import (
	"time"
)

// User is the persisted quota/premium state for one Telegram user.
type User struct {
	TelegramID        int64      `db:"telegram_id" json:"telegramId"`
	Username          *string    `db:"username" json:"username,omitempty"`
	FirstName         *string    `db:"first_name" json:"firstName,omitempty"`
	IsPremium         bool       `db:"is_premium" json:"isPremium"`
	PremiumUntil      *time.Time `db:"premium_until" json:"premiumUntil,omitempty"`
	FreeRequestsUsed  int        `db:"free_requests_used" json:"freeRequestsUsed"`
	FreeRequestsLimit int        `db:"free_requests_limit" json:"freeRequestsLimit"`
	LastResetAt       time.Time  `db:"last_reset_at" json:"lastResetAt"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// PremiumExpired reports whether a stored premium flag has outlived its
// expiry timestamp. A user with no premium_until never expires.
func (u *User) PremiumExpired(now time.Time) bool {
	return u.IsPremium && u.PremiumUntil != nil && now.After(*u.PremiumUntil)
}

// FreeRequestsRemaining never goes below zero.
func (u *User) FreeRequestsRemaining() int {
	remaining := u.FreeRequestsLimit - u.FreeRequestsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

type CreateUserParams struct {
	TelegramID        int64
	Username          *string
	FirstName         *string
	FreeRequestsLimit int
}
