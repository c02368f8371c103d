package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// ActivityReader lists the activity log
type ActivityReader interface {
	List(ctx context.Context, dateKey string) ([]types.ActivityEntry, error)
	Today() string
}

// ActivityHandler provides the admin activity log endpoint
type ActivityHandler struct {
	log    ActivityReader
	logger zerolog.Logger
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(log ActivityReader, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		log:    log,
		logger: logger.With().Str("component", "activity_handler").Logger(),
	}
}

// List returns the entries of one day
// GET /api/activity?date=YYYY-MM-DD
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.log.Today()
	} else if _, err := time.Parse(eventsource.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	entries, err := h.log.List(r.Context(), date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to list activity")
		writeError(w, http.StatusInternalServerError, "failed to retrieve activity")
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
