package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/auth"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// Authenticator checks credentials and issues a session token
type Authenticator interface {
	Login(name, password, ip string) (string, *auth.Claims, error)
}

// ActivityRecorder receives audit lines
type ActivityRecorder interface {
	Record(ctx context.Context, user string, kind types.ActivityType, message string)
}

// SessionHandler handles login, logout and identity endpoints
type SessionHandler struct {
	auth     Authenticator
	activity ActivityRecorder
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(authenticator Authenticator, activity ActivityRecorder, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		auth:     authenticator,
		activity: activity,
		logger:   logger.With().Str("component", "session").Logger(),
	}
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      types.Viewer `json:"user"`
}

// Login handles POST /api/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	token, claims, err := h.auth.Login(req.Name, req.Password, clientIP(r))
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.activity.Record(r.Context(), req.Name, types.ActivityFailedLogin, "invalid credentials")
		writeError(w, http.StatusUnauthorized, "invalid name or password")
		return
	case errors.Is(err, auth.ErrInvalidRole):
		h.activity.Record(r.Context(), req.Name, types.ActivityFailedLogin, "invalid role")
		writeError(w, http.StatusForbidden, "invalid role")
		return
	default:
		h.logger.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusServiceUnavailable, "login unavailable")
		return
	}

	h.activity.Record(r.Context(), claims.Name, types.ActivityLogin, "logged in")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      claims.Viewer(),
	})
}

// Logout handles POST /api/logout. Tokens are stateless so this only
// records the event.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	h.activity.Record(r.Context(), claims.Name, types.ActivityLogout, "logged out")
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	writeJSON(w, http.StatusOK, claims.Viewer())
}
