package ws

import (
	"context"
	"encoding/json"

	"github.com/invitapp/guestlist-server/internal/models"
	"go.uber.org/zap"
)

// Message defines the structure of data pushed over the WebSocket
type Message struct {
	Type    string          `json:"type"` // INIT or SNAPSHOT
	Payload json.RawMessage `json:"payload"`
}

// Hub maintains the set of connected clients and fans snapshots out to
// them. A client registered while a snapshot exists receives it
// immediately as INIT, so the table renders without waiting for the next
// change notification.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound snapshots.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Latest snapshot sent, retained for newly registered clients.
	last []byte

	// Closed when Run returns; unblocks registry sends from clients and
	// broadcasters that would otherwise hang after teardown.
	done chan struct{}

	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 4),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Broadcast marshals the snapshot and queues it for every connected client.
// A no-op once the hub has shut down.
func (h *Hub) Broadcast(snapshot *models.GuestsResponse) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("snapshot marshal failed", zap.Error(err))
		return
	}
	data, _ := json.Marshal(&Message{Type: "SNAPSHOT", Payload: payload})
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// Run owns the client registry until the context is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			close(h.done)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("ws client registered", zap.Int("clients", len(h.clients)))

			if h.last != nil {
				var msg Message
				if err := json.Unmarshal(h.last, &msg); err == nil {
					msg.Type = "INIT"
					if data, err := json.Marshal(&msg); err == nil {
						client.send <- data
					}
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("ws client unregistered", zap.Int("clients", len(h.clients)))
			}

		case data := <-h.broadcast:
			h.last = data
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer: drop it rather than stall the hub
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}
