package websocket

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dennisdiepolder/qcdash/internal/auth"
	"github.com/dennisdiepolder/qcdash/internal/config"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SnapshotSource provides the most recent board, nil before the first tick
type SnapshotSource interface {
	Latest() *types.BoardSnapshot
}

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub      *Hub
	config   *config.Config
	board    SnapshotSource
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler. board may be nil.
func NewHandler(hub *Hub, cfg *config.Config, board SnapshotSource, logger zerolog.Logger) *Handler {
	h := &Handler{
		hub:    hub,
		config: cfg,
		board:  board,
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts same-host requests and the configured origins
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetUserFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(h.hub, conn, h.config, h.logger, claims)

	// new clients get the current board straight away
	if h.board != nil {
		if snapshot := h.board.Latest(); snapshot != nil {
			if filtered := client.FilterSnapshot(snapshot); filtered != nil {
				if data, err := json.Marshal(filtered); err == nil {
					client.send <- data
				}
			}
		}
	}

	h.hub.register <- client
	client.Start()
}
