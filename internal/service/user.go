package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/neirobot/bot-server-go/internal/errors"
	"github.com/neirobot/bot-server-go/internal/model"
	"github.com/neirobot/bot-server-go/internal/quota"
	"github.com/neirobot/bot-server-go/internal/repository"
)

// UserService owns account state: creation on first contact and the
// quota/premium transitions instructed by the quota policy.
type UserService struct {
	userRepo          repository.UserRepository
	freeRequestsLimit int
}

func NewUserService(userRepo repository.UserRepository, freeRequestsLimit int) *UserService {
	return &UserService{
		userRepo:          userRepo,
		freeRequestsLimit: freeRequestsLimit,
	}
}

// GetOrCreate fetches the account, creating it with default quota fields on
// first contact. Empty display metadata is stored as NULL so a later update
// with real values wins.
func (s *UserService) GetOrCreate(ctx context.Context, telegramID int64, username, firstName string) (*model.User, error) {
	params := model.CreateUserParams{
		TelegramID:        telegramID,
		FreeRequestsLimit: s.freeRequestsLimit,
	}
	if username != "" {
		params.Username = &username
	}
	if firstName != "" {
		params.FirstName = &firstName
	}

	user, err := s.userRepo.GetOrCreate(ctx, params)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return user, nil
}

// EvaluateQuota runs the quota policy against the account and persists any
// transitions it instructs (premium expiry, daily reset). The repository
// updates carry the same guards as the policy, so concurrent evaluations of
// the same account converge on one applied transition.
func (s *UserService) EvaluateQuota(ctx context.Context, user *model.User, now time.Time) (*model.User, bool, error) {
	d := quota.Evaluate(*user, now)
	if !d.ExpirePremium && !d.ResetUsage {
		return user, d.Allowed, nil
	}

	if d.ExpirePremium {
		if _, err := s.userRepo.ExpirePremium(ctx, user.TelegramID, now); err != nil {
			return nil, false, apperrors.Storage(err)
		}
		log.Info().Int64("telegramId", user.TelegramID).Msg("premium expired")
	}

	if d.ResetUsage {
		if _, err := s.userRepo.ResetDailyUsage(ctx, user.TelegramID, now); err != nil {
			return nil, false, apperrors.Storage(err)
		}
		log.Debug().Int64("telegramId", user.TelegramID).Msg("daily usage reset")
	}

	fresh, err := s.userRepo.FindByTelegramID(ctx, user.TelegramID)
	if err != nil {
		return nil, false, apperrors.Storage(err)
	}
	if fresh == nil {
		// Row deleted out-of-band mid-flight; fall back to the computed view.
		view := d.User
		fresh = &view
	}

	d = quota.Evaluate(*fresh, now)
	return fresh, d.Allowed, nil
}

// Consume charges one free request after a generation attempt. Premium
// accounts are never charged. The guarded increment means a concurrent
// consumer that already filled the counter turns this into a no-op rather
// than pushing used past the limit.
func (s *UserService) Consume(ctx context.Context, user *model.User) (*model.User, error) {
	if user.IsPremium {
		return user, nil
	}

	updated, err := s.userRepo.ConsumeFreeRequest(ctx, user.TelegramID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if updated == nil {
		log.Warn().Int64("telegramId", user.TelegramID).Msg("free request counter already at limit, consume skipped")
		return user, nil
	}
	return updated, nil
}

func (s *UserService) Find(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	return user, nil
}

// GrantPremium marks the account premium until the given time. Payment is
// handled out-of-band; this is the administrative activation step.
func (s *UserService) GrantPremium(ctx context.Context, telegramID int64, until time.Time) (*model.User, error) {
	user, err := s.userRepo.GrantPremium(ctx, telegramID, until)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	log.Info().Int64("telegramId", telegramID).Time("until", until).Msg("premium granted")
	return user, nil
}

func (s *UserService) RevokePremium(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.userRepo.RevokePremium(ctx, telegramID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	log.Info().Int64("telegramId", telegramID).Msg("premium revoked")
	return user, nil
}
