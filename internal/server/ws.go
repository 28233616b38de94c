package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/shrimp-sentry/internal/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeWait = 2 * time.Second

// Event types sent over /api/events.
const (
	EventStatus       = "status"
	EventNotification = "notification"
)

// Status levels.
const (
	LevelWarning = "warning"
	LevelSuccess = "success"
	LevelError   = "error"
)

// Event is one message pushed to browser clients.
type Event struct {
	Type         string               `json:"type"`
	Level        string               `json:"level,omitempty"`
	Text         string               `json:"text,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
	Timestamp    int64                `json:"timestamp"`
}

// Hub broadcasts status and notification events to WebSocket clients.
// It implements app.StatusSink and notify.Notifier.
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	last    *Event
	logger  *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.L()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	// New clients see the current status right away.
	if h.last != nil {
		h.write(conn, h.last)
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ShowWarning broadcasts a warning status.
func (h *Hub) ShowWarning(text string) { h.status(LevelWarning, text) }

// ShowSuccess broadcasts a success status.
func (h *Hub) ShowSuccess(text string) { h.status(LevelSuccess, text) }

// ShowError broadcasts an error status.
func (h *Hub) ShowError(text string) { h.status(LevelError, text) }

func (h *Hub) status(level, text string) {
	ev := &Event{
		Type:      EventStatus,
		Level:     level,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Repeated statuses are only sent once.
	if h.last != nil && h.last.Level == level && h.last.Text == text {
		return
	}
	h.last = ev
	h.broadcast(ev)
}

// Notify implements notify.Notifier by pushing the notification to every client.
// The browser decides whether to show it based on OnlyWhenUnfocused.
func (h *Hub) Notify(_ context.Context, n notify.Notification) error {
	ev := &Event{
		Type:         EventNotification,
		Notification: &n,
		Timestamp:    time.Now().UnixMilli(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(ev)
	return nil
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// broadcast sends ev to all clients. Callers hold h.mu.
func (h *Hub) broadcast(ev *Event) {
	for conn := range h.clients {
		if err := h.write(conn, ev); err != nil {
			h.logger.Debug("dropping websocket client", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, ev *Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
