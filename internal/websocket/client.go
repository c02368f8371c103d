package websocket

import (
	"time"

	"github.com/dennisdiepolder/qcdash/internal/auth"
	"github.com/dennisdiepolder/qcdash/internal/config"
	"github.com/dennisdiepolder/qcdash/internal/report"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// Unique client ID
	id string

	// The hub this client belongs to
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	config *config.Config
	logger zerolog.Logger

	// Viewer scope for board filtering
	claims *auth.Claims
	view   report.View
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger, claims *auth.Claims) *Client {
	clientID := uuid.New().String()
	c := &Client{
		id:     clientID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		config: cfg,
		logger: logger.With().Str("client_id", clientID).Logger(),
		claims: claims,
	}
	if claims != nil {
		c.view = report.ViewFor(claims.Viewer())
	}
	return c
}

// readPump pumps messages from the websocket connection to the hub
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			break
		}
		c.logger.Debug().Str("message", string(message)).Msg("received message from client")
	}
}

// writePump pumps messages from the hub to the websocket connection
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// FilterSnapshot keeps the agents the client's view may see and recounts
// the in-line total. Returns nil when nothing is visible.
func (c *Client) FilterSnapshot(snapshot *types.BoardSnapshot) *types.BoardSnapshot {
	if c.view == nil || c.view.Name() == "admin" {
		return snapshot
	}

	agents := make([]types.BoardAgent, 0)
	for _, agent := range snapshot.Agents {
		member := types.Member{Name: agent.AgentName, Teams: agent.Teams, Shifts: agent.Shifts}
		if c.view.Visible(member) {
			agents = append(agents, agent)
		}
	}
	if len(agents) == 0 {
		return nil
	}

	inLine := 0
	for _, agent := range agents {
		if agent.Status == types.StatusOnQueue {
			inLine++
		}
	}

	return &types.BoardSnapshot{
		Type:      snapshot.Type,
		Timestamp: snapshot.Timestamp,
		InLine:    inLine,
		Agents:    agents,
	}
}
