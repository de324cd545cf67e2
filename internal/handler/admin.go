package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/neirobot/bot-server-go/internal/audit"
	apperrors "github.com/neirobot/bot-server-go/internal/errors"
	"github.com/neirobot/bot-server-go/internal/httputil"
	"github.com/neirobot/bot-server-go/internal/service"
	"github.com/neirobot/bot-server-go/internal/util"
)

// AdminHandler is the token-authenticated ops surface. Premium activation
// lives here because payment happens out-of-band: an operator confirms the
// payment and grants premium by hand.
type AdminHandler struct {
	users    *service.UserService
	requests *service.RequestService
	token    string
}

func NewAdminHandler(users *service.UserService, requests *service.RequestService, token string) *AdminHandler {
	return &AdminHandler{
		users:    users,
		requests: requests,
		token:    token,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireToken)

	r.Get("/users/{telegramID}", h.getUser)
	r.Post("/users/{telegramID}/premium", h.grantPremium)
	r.Delete("/users/{telegramID}/premium", h.revokePremium)
	r.Get("/users/{telegramID}/requests", h.listRequests)

	return r
}

func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			httputil.WriteError(w, apperrors.Forbidden("Admin API is disabled"))
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !util.ConstantTimeEqual(token, h.token) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid admin token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func telegramIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "telegramID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("telegramID", "must be a positive integer")
	}
	return id, nil
}

func (h *AdminHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := telegramIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.users.Find(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatUser(user))
}

type grantPremiumRequest struct {
	Days int `json:"days"`
}

func (h *AdminHandler) grantPremium(w http.ResponseWriter, r *http.Request) {
	id, err := telegramIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req grantPremiumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Days <= 0 {
		httputil.WriteError(w, apperrors.InvalidInput("days", "must be positive"))
		return
	}

	until := time.Now().UTC().Add(time.Duration(req.Days) * 24 * time.Hour)
	user, err := h.users.GrantPremium(r.Context(), id, until)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventPremiumGrant,
		UserID:  id,
		Details: map[string]interface{}{"days": req.Days},
	})
	log.Info().Int64("telegramId", id).Int("days", req.Days).Msg("admin granted premium")

	writeJSON(w, http.StatusOK, formatUser(user))
}

func (h *AdminHandler) revokePremium(w http.ResponseWriter, r *http.Request) {
	id, err := telegramIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.users.RevokePremium(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventPremiumRevoke, UserID: id})

	writeJSON(w, http.StatusOK, formatUser(user))
}

func (h *AdminHandler) listRequests(w http.ResponseWriter, r *http.Request) {
	id, err := telegramIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reqs, err := h.requests.RecentForUser(r.Context(), id, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	total, err := h.requests.CountForUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requests": reqs,
		"total":    total,
	})
}
