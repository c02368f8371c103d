package websocket

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/auth"
	"github.com/dennisdiepolder/qcdash/internal/config"
	"github.com/dennisdiepolder/qcdash/internal/report"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestNewHub(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}

	if hub.broadcast == nil {
		t.Error("expected broadcast channel to be initialized")
	}

	if hub.register == nil {
		t.Error("expected register channel to be initialized")
	}

	if hub.unregister == nil {
		t.Error("expected unregister channel to be initialized")
	}
}

func TestHubClientCount(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Initial count should be 0
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	// Simulate adding clients
	hub.mu.Lock()
	hub.clients[&Client{id: "test1"}] = true
	hub.clients[&Client{id: "test2"}] = true
	hub.mu.Unlock()

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestHubBroadcast(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub in goroutine
	go hub.Run()

	// Give hub time to start
	time.Sleep(10 * time.Millisecond)

	// Test broadcast
	message := []byte("test message")
	hub.Broadcast(message)

	// The broadcast should succeed without blocking
	select {
	case <-time.After(100 * time.Millisecond):
		t.Error("broadcast blocked unexpectedly")
	default:
		// Broadcast completed
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub in goroutine
	go hub.Run()

	// Create mock client
	client := &Client{
		id:   "test-client",
		hub:  hub,
		send: make(chan []byte, 1),
	}

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after register, got %d", hub.ClientCount())
	}

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
}

func TestHubBroadcastToMultipleClients(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub
	go hub.Run()

	// Create multiple mock clients
	client1 := &Client{
		id:   "client1",
		hub:  hub,
		send: make(chan []byte, 10),
	}

	client2 := &Client{
		id:   "client2",
		hub:  hub,
		send: make(chan []byte, 10),
	}

	// Register clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast message
	message := []byte("test broadcast")
	hub.Broadcast(message)

	// Wait for message to be sent
	time.Sleep(10 * time.Millisecond)

	// Check both clients received the message
	select {
	case msg := <-client1.send:
		if string(msg) != string(message) {
			t.Errorf("client1 expected %s, got %s", message, msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client1 did not receive message")
	}

	select {
	case msg := <-client2.send:
		if string(msg) != string(message) {
			t.Errorf("client2 expected %s, got %s", message, msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client2 did not receive message")
	}
}

func testSnapshot() *types.BoardSnapshot {
	return &types.BoardSnapshot{
		Type:      types.BoardSnapshotType,
		Timestamp: "2026-10-15T12:00:00Z",
		InLine:    2,
		Agents: []types.BoardAgent{
			{AgentName: "Ali", VoipID: "101", Teams: []string{"Sales"}, Shifts: []string{"Morning"}, Status: types.StatusOnQueue},
			{AgentName: "Nima", VoipID: "102", Teams: []string{"Sales"}, Shifts: []string{"Evening"}, Status: types.StatusOffQueue},
			{AgentName: "Leila", VoipID: "202", Teams: []string{"Support"}, Shifts: []string{"Evening"}, Status: types.StatusOnQueue},
		},
	}
}

func clientFor(viewer types.Viewer) *Client {
	return &Client{id: viewer.Name, view: report.ViewFor(viewer), send: make(chan []byte, 10)}
}

func TestFilterSnapshot(t *testing.T) {
	snapshot := testSnapshot()

	admin := clientFor(types.Viewer{Name: "Sara", Role: types.RoleAdmin})
	if got := admin.FilterSnapshot(snapshot); got != snapshot {
		t.Error("expected admin to receive the snapshot unchanged")
	}

	manager := clientFor(types.Viewer{Name: "Reza", Role: types.RoleTeamManager, Teams: []string{"Sales"}})
	got := manager.FilterSnapshot(snapshot)
	if got == nil || len(got.Agents) != 2 {
		t.Fatalf("expected 2 sales agents, got %+v", got)
	}
	if got.InLine != 1 {
		t.Errorf("expected 1 in line, got %d", got.InLine)
	}

	expert := clientFor(types.Viewer{Name: "Leila", Role: types.RoleExpert})
	got = expert.FilterSnapshot(snapshot)
	if got == nil || len(got.Agents) != 1 || got.Agents[0].VoipID != "202" {
		t.Errorf("expected only Leila, got %+v", got)
	}

	stranger := clientFor(types.Viewer{Name: "Omid", Role: types.RoleExpert})
	if got := stranger.FilterSnapshot(snapshot); got != nil {
		t.Errorf("expected nil snapshot, got %+v", got)
	}
}

func TestHubBroadcastFiltersSnapshots(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)
	go hub.Run()

	manager := clientFor(types.Viewer{Name: "Reza", Role: types.RoleTeamManager, Teams: []string{"Support"}})
	manager.hub = hub
	stranger := clientFor(types.Viewer{Name: "Omid", Role: types.RoleExpert})
	stranger.hub = hub

	hub.register <- manager
	hub.register <- stranger
	time.Sleep(10 * time.Millisecond)

	data, err := json.Marshal(testSnapshot())
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	hub.Broadcast(data)

	select {
	case msg := <-manager.send:
		var got types.BoardSnapshot
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if len(got.Agents) != 1 || got.Agents[0].AgentName != "Leila" {
			t.Errorf("expected only Leila, got %+v", got.Agents)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("manager did not receive snapshot")
	}

	select {
	case msg := <-stranger.send:
		t.Errorf("stranger should receive nothing, got %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

type staticBoard struct{ snapshot *types.BoardSnapshot }

func (b staticBoard) Latest() *types.BoardSnapshot { return b.snapshot }

func TestHandlerSendsLatestSnapshot(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)
	go hub.Run()

	cfg := &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		PongWait:       time.Minute,
		PingPeriod:     54 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 512,
	}
	handler := NewHandler(hub, cfg, staticBoard{testSnapshot()}, logger)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := &auth.Claims{Name: "Ali", Role: types.RoleExpert}
		handler.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), claims)))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}

	var got types.BoardSnapshot
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(got.Agents) != 1 || got.Agents[0].AgentName != "Ali" {
		t.Errorf("expected only Ali, got %+v", got.Agents)
	}
}

func TestCheckOrigin(t *testing.T) {
	handler := NewHandler(NewHub(zerolog.New(&bytes.Buffer{})), &config.Config{AllowedOrigins: []string{"http://localhost:5173"}}, nil, zerolog.New(&bytes.Buffer{}))

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://example.com", true},
		{"http://evil.test", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := handler.checkOrigin(req); got != tt.want {
			t.Errorf("origin %q: expected %v, got %v", tt.origin, tt.want, got)
		}
	}
}
