package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/auth"
	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/report"
	"github.com/dennisdiepolder/qcdash/internal/roster"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// ReportService builds role-scoped reports
type ReportService interface {
	Presence(ctx context.Context, req report.Request) (*report.Report, error)
	Events(ctx context.Context, req report.Request) ([]report.AgentEvents, error)
	Options(viewer types.Viewer) (report.FilterOptions, error)
	Location() *time.Location
}

// ReportHandler serves the presence report endpoints
type ReportHandler struct {
	svc    ReportService
	logger zerolog.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(svc ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		svc:    svc,
		logger: logger.With().Str("component", "report_handler").Logger(),
	}
}

// Filters handles GET /api/filters
func (h *ReportHandler) Filters(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	opts, err := h.svc.Options(claims.Viewer())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// Presence handles GET /api/presence?start=&end=&team=&shift=&expert=
func (h *ReportHandler) Presence(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	rep, err := h.svc.Presence(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Events handles GET /api/presence/events with the same parameters
func (h *ReportHandler) Events(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	logs, err := h.svc.Events(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *ReportHandler) parseRequest(w http.ResponseWriter, r *http.Request) (report.Request, bool) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return report.Request{}, false
	}

	q := r.URL.Query()
	req := report.Request{
		Viewer: claims.Viewer(),
		Filter: report.Filter{
			Team:   q.Get("team"),
			Shift:  q.Get("shift"),
			Expert: q.Get("expert"),
		},
	}

	var err error
	if req.Start, err = h.parseDate(q.Get("start")); err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return report.Request{}, false
	}
	if req.End, err = h.parseDate(q.Get("end")); err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return report.Request{}, false
	}
	return req, true
}

// parseDate returns the zero time for an empty value, which the service
// reads as today
func (h *ReportHandler) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(eventsource.DateLayout, v, h.svc.Location())
}

func (h *ReportHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrForbiddenFilter):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, eventsource.ErrUpstreamFetch):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": "telephony database unavailable",
			"rows":  []types.ReportRow{},
		})
	case errors.Is(err, roster.ErrRosterUnavailable):
		writeError(w, http.StatusServiceUnavailable, "roster unavailable")
	default:
		h.logger.Error().Err(err).Msg("report failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
