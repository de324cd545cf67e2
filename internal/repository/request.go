package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/neirobot/bot-server-go/internal/database"
	"github.com/neirobot/bot-server-go/internal/model"
)

type RequestRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Request, error)
	FindRecentByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Request, error)
	// Create opens a pending ledger entry.
	Create(ctx context.Context, params model.CreateRequestParams) (*model.Request, error)
	// Close moves a pending entry to a terminal status. The UPDATE is guarded
	// by status = 'pending'; closing a missing or already-closed entry
	// returns nil so the caller can reject it as not found.
	Close(ctx context.Context, id int64, responseText string, status model.RequestStatus) (*model.Request, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	CountByStatus(ctx context.Context, status model.RequestStatus) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) RequestRepository
}

type requestRepo struct {
	db database.DBTX
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) WithTx(tx *sqlx.Tx) RequestRepository {
	return &requestRepo{db: tx}
}

func (r *requestRepo) FindByID(ctx context.Context, id int64) (*model.Request, error) {
	var req model.Request
	err := r.db.GetContext(ctx, &req, `SELECT * FROM requests WHERE id = $1`, id)
	return HandleNotFound(&req, err)
}

func (r *requestRepo) FindRecentByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Request, error) {
	var reqs []model.Request
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT * FROM requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return reqs, err
}

func (r *requestRepo) Create(ctx context.Context, params model.CreateRequestParams) (*model.Request, error) {
	var req model.Request
	err := r.db.GetContext(ctx, &req, `
		INSERT INTO requests (user_id, request_text, status)
		VALUES ($1, $2, 'pending')
		RETURNING *
	`, params.UserID, params.RequestText)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepo) Close(ctx context.Context, id int64, responseText string, status model.RequestStatus) (*model.Request, error) {
	var req model.Request
	err := r.db.GetContext(ctx, &req, `
		UPDATE requests SET
			response_text = $2,
			status = $3,
			completed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, id, responseText, status)
	return HandleNotFound(&req, err)
}

func (r *requestRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM requests WHERE user_id = $1
	`, userID)
	return count, err
}

func (r *requestRepo) CountByStatus(ctx context.Context, status model.RequestStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM requests WHERE status = $1
	`, status)
	return count, err
}
