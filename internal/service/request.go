package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/neirobot/bot-server-go/internal/errors"
	"github.com/neirobot/bot-server-go/internal/model"
	"github.com/neirobot/bot-server-go/internal/repository"
)

// RequestService owns the ledger of generation attempts.
type RequestService struct {
	requestRepo repository.RequestRepository
}

func NewRequestService(requestRepo repository.RequestRepository) *RequestService {
	return &RequestService{requestRepo: requestRepo}
}

// Open records a pending ledger entry before the generation call is made.
func (s *RequestService) Open(ctx context.Context, userID int64, requestText string) (*model.Request, error) {
	req, err := s.requestRepo.Create(ctx, model.CreateRequestParams{
		UserID:      userID,
		RequestText: requestText,
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	log.Info().
		Int64("requestId", req.ID).
		Int64("userId", userID).
		Msg("ledger entry opened")

	return req, nil
}

// Close moves a pending entry to completed or failed, exactly once. Closing
// an entry that does not exist or was already closed is rejected with a
// not-found error.
func (s *RequestService) Close(ctx context.Context, id int64, responseText string, status model.RequestStatus) (*model.Request, error) {
	if !status.Terminal() {
		return nil, apperrors.InvalidInput("status", "must be completed or failed")
	}

	req, err := s.requestRepo.Close(ctx, id, responseText, status)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if req == nil {
		return nil, apperrors.NotFound("pending request")
	}

	log.Info().
		Int64("requestId", id).
		Str("status", string(status)).
		Msg("ledger entry closed")

	return req, nil
}

// CountForUser returns the total number of historical entries regardless of
// status, used for stats reporting.
func (s *RequestService) CountForUser(ctx context.Context, userID int64) (int, error) {
	count, err := s.requestRepo.CountByUser(ctx, userID)
	if err != nil {
		return 0, apperrors.Storage(err)
	}
	return count, nil
}

func (s *RequestService) RecentForUser(ctx context.Context, userID int64, limit, offset int) ([]model.Request, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	reqs, err := s.requestRepo.FindRecentByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return reqs, nil
}
