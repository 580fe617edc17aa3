package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"agency-crm-api/internal/model"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// EventCreditsUpdated is sent after any balance change.
const EventCreditsUpdated = "credits_updated"

const broadcastBuffer = 64

// Event is the envelope pushed to dashboards.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscriber is the authenticated user behind a socket.
type Subscriber struct {
	UserID uuid.UUID
	Role   model.Role
}

// Receives reports whether events about owner may be sent to s.
// Admin-tier users see every account, others only their own.
func (s Subscriber) Receives(owner uuid.UUID) bool {
	return s.Role.IsAdminTier() || s.UserID == owner
}

// Client is a connection waiting to be registered with the hub.
type Client struct {
	Conn       *websocket.Conn
	Subscriber Subscriber
}

// Message is an encoded event addressed to the owner of the data.
type Message struct {
	Owner   uuid.UUID
	Payload []byte
}

// Hub fans events out to the connected websocket clients allowed to see them.
type Hub struct {
	Clients    map[*websocket.Conn]Subscriber
	Register   chan Client
	Unregister chan *websocket.Conn
	Broadcast  chan Message
	mutex      sync.Mutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Clients:    make(map[*websocket.Conn]Subscriber),
		Register:   make(chan Client),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan Message, broadcastBuffer),
		logger:     logger,
	}
}

// Publish queues an event about owner's data without blocking the caller.
// It reports false when the event was dropped because the queue is full.
func (h *Hub) Publish(eventType string, owner uuid.UUID, data interface{}) bool {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, Timestamp: time.Now()})
	if err != nil {
		h.logger.Error("ws event encode failed", "type", eventType, "error", err)
		return false
	}
	select {
	case h.Broadcast <- Message{Owner: owner, Payload: payload}:
		return true
	default:
		h.logger.Warn("ws broadcast queue full, event dropped", "type", eventType)
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.Clients[client.Conn] = client.Subscriber
			h.mutex.Unlock()
			h.logger.Debug("ws client connected", "user_id", client.Subscriber.UserID, "role", client.Subscriber.Role)

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn, sub := range h.Clients {
				if !sub.Receives(message.Owner) {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, message.Payload); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}
