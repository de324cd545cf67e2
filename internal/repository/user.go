package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/neirobot/bot-server-go/internal/database"
	"github.com/neirobot/bot-server-go/internal/model"
)

type UserRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	// GetOrCreate upserts the user row. Concurrent first contact from the
	// same user resolves through the ON CONFLICT clause; display metadata is
	// refreshed on every call.
	GetOrCreate(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	// ResetDailyUsage zeroes the counter iff the stored reset date (UTC) is
	// strictly before now's date (UTC) and the user is not premium. Returns
	// the row when a reset happened, nil when it was a no-op.
	ResetDailyUsage(ctx context.Context, telegramID int64, now time.Time) (*model.User, error)
	// ExpirePremium clears the premium flag iff premium_until has elapsed.
	// Returns the row when expiry happened, nil when it was a no-op.
	ExpirePremium(ctx context.Context, telegramID int64, now time.Time) (*model.User, error)
	// ConsumeFreeRequest increments the usage counter, guarded so the counter
	// can never exceed the limit even under concurrent consumption. Returns
	// nil when the guard rejected the increment.
	ConsumeFreeRequest(ctx context.Context, telegramID int64) (*model.User, error)
	GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*model.User, error)
	RevokePremium(ctx context.Context, telegramID int64) (*model.User, error)
	// ExpireDuePremiums and ResetDueCounters are the bulk forms used by the
	// maintenance sweep. Both use the same guards as the per-user operations.
	ExpireDuePremiums(ctx context.Context, now time.Time) (int64, error)
	ResetDueCounters(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE telegram_id = $1
	`, telegramID)
	return HandleNotFound(&user, err)
}

func (r *userRepo) GetOrCreate(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (telegram_id, username, first_name, free_requests_limit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			first_name = COALESCE(EXCLUDED.first_name, users.first_name),
			updated_at = NOW()
		RETURNING *
	`, params.TelegramID, params.Username, params.FirstName, params.FreeRequestsLimit)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ResetDailyUsage(ctx context.Context, telegramID int64, now time.Time) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			free_requests_used = 0,
			last_reset_at = $2,
			updated_at = NOW()
		WHERE telegram_id = $1
		  AND is_premium = FALSE
		  AND (last_reset_at AT TIME ZONE 'UTC')::date < ($2::timestamptz AT TIME ZONE 'UTC')::date
		RETURNING *
	`, telegramID, now)
	return HandleNotFound(&user, err)
}

func (r *userRepo) ExpirePremium(ctx context.Context, telegramID int64, now time.Time) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			is_premium = FALSE,
			updated_at = NOW()
		WHERE telegram_id = $1
		  AND is_premium = TRUE
		  AND premium_until IS NOT NULL
		  AND premium_until <= $2
		RETURNING *
	`, telegramID, now)
	return HandleNotFound(&user, err)
}

func (r *userRepo) ConsumeFreeRequest(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			free_requests_used = free_requests_used + 1,
			updated_at = NOW()
		WHERE telegram_id = $1
		  AND free_requests_used < free_requests_limit
		RETURNING *
	`, telegramID)
	return HandleNotFound(&user, err)
}

func (r *userRepo) GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			is_premium = TRUE,
			premium_until = $2,
			updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING *
	`, telegramID, until)
	return HandleNotFound(&user, err)
}

func (r *userRepo) RevokePremium(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			is_premium = FALSE,
			premium_until = NULL,
			updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING *
	`, telegramID)
	return HandleNotFound(&user, err)
}

func (r *userRepo) ExpireDuePremiums(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			is_premium = FALSE,
			updated_at = NOW()
		WHERE is_premium = TRUE
		  AND premium_until IS NOT NULL
		  AND premium_until <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *userRepo) ResetDueCounters(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			free_requests_used = 0,
			last_reset_at = $1,
			updated_at = NOW()
		WHERE is_premium = FALSE
		  AND free_requests_used > 0
		  AND (last_reset_at AT TIME ZONE 'UTC')::date < ($1::timestamptz AT TIME ZONE 'UTC')::date
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}
