package api

import (
	"net/http"

	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// MemberLister supplies the roster
type MemberLister interface {
	Members() ([]types.Member, error)
}

// RosterHandler exposes the roster to admins. Password cells never leave
// the server.
type RosterHandler struct {
	members MemberLister
	logger  zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler
func NewRosterHandler(members MemberLister, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		members: members,
		logger:  logger.With().Str("component", "roster").Logger(),
	}
}

// HandleRoster handles GET /api/admin/roster
func (h *RosterHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.Members()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read roster")
		writeError(w, http.StatusServiceUnavailable, "roster unavailable")
		return
	}
	writeJSON(w, http.StatusOK, members)
}
