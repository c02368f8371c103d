package websocket

import (
	"encoding/json"
	"sync"

	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for all clients
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	m := metrics.Get()
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			m.RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				m.RecordWebSocketDisconnect()
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			// Board snapshots are cut down per client, anything else goes out as-is
			var snapshot types.BoardSnapshot
			if err := json.Unmarshal(message, &snapshot); err != nil || snapshot.Type != types.BoardSnapshotType {
				h.broadcastRaw(message)
				continue
			}
			h.broadcastFiltered(&snapshot)
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastRaw sends a raw message to all clients without filtering
func (h *Hub) broadcastRaw(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.deliver(client, message)
	}
}

// broadcastFiltered sends each client the part of the board it may see
func (h *Hub) broadcastFiltered(snapshot *types.BoardSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		filtered := client.FilterSnapshot(snapshot)
		if filtered == nil {
			continue
		}

		data, err := json.Marshal(filtered)
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to marshal board snapshot")
			continue
		}
		h.deliver(client, data)
	}
}

// deliver must be called with mu held
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
		metrics.Get().RecordWebSocketMessage()
	default:
		// Client's send buffer is full, close and remove it
		close(client.send)
		delete(h.clients, client)
		metrics.Get().RecordWebSocketError()
		h.logger.Warn().
			Str("client_id", client.id).
			Msg("client send buffer full, closing connection")
	}
}
