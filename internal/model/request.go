package model

import (
	"time"
)

// Request is one ledger entry: a single generation attempt and its outcome.
type Request struct {
	ID           int64         `db:"id" json:"id"`
	UserID       int64         `db:"user_id" json:"userId"`
	RequestText  string        `db:"request_text" json:"requestText"`
	Status       RequestStatus `db:"status" json:"status"`
	ResponseText *string       `db:"response_text" json:"responseText,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	CompletedAt  *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
}

type CreateRequestParams struct {
	UserID      int64
	RequestText string
}
