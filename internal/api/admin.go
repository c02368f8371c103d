package api

import (
	"context"
	"net/http"

	"github.com/dennisdiepolder/qcdash/internal/auth"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// RequireAdmin lets only the admin role through
func RequireAdmin(next http.Handler) http.Handler {
	return auth.RequireRole(types.RoleAdmin)(next)
}

// CacheInvalidator drops cached event pages
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RosterReloader forces a roster read
type RosterReloader interface {
	Reload() error
	Members() ([]types.Member, error)
}

// AdminHandler handles operational resets
type AdminHandler struct {
	cache    CacheInvalidator
	roster   RosterReloader
	activity ActivityRecorder
	logger   zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(cache CacheInvalidator, roster RosterReloader, activity ActivityRecorder, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		cache:    cache,
		roster:   roster,
		activity: activity,
		logger:   logger.With().Str("component", "admin").Logger(),
	}
}

// InvalidateCache handles POST /api/admin/cache/invalidate
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to invalidate event cache")
		writeError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}

	h.record(r, "event cache invalidated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "event cache invalidated"})
}

// ReloadRoster handles POST /api/admin/roster/reload
func (h *AdminHandler) ReloadRoster(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.Reload(); err != nil {
		writeError(w, http.StatusBadGateway, "roster reload failed: "+err.Error())
		return
	}

	members, err := h.roster.Members()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "roster unavailable")
		return
	}

	h.record(r, "roster reloaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "roster reloaded",
		"members": len(members),
	})
}

func (h *AdminHandler) record(r *http.Request, message string) {
	if claims, ok := auth.GetUserFromContext(r.Context()); ok {
		h.activity.Record(r.Context(), claims.Name, types.ActivityAdmin, message)
	}
}
