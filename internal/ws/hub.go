// Package ws fans out order and staff events to connected tills and back
// office screens over websockets.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/enum"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Topics lists the rooms clients may subscribe to.
var Topics = map[string]bool{
	enum.TopicOrders: true,
	enum.TopicStaff:  true,
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by topic
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan Event

	// Closed once Run has returned.
	done chan struct{}

	logger *logrus.Logger
	now    func() time.Time

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		logger:     logger,
		now:        time.Now,
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing
// every client's send channel.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.topic] == nil {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				h.logger.WithError(err).WithField("type", event.Type).Error("marshal websocket event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.Topic] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, drop it
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join hands client to the loop. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave hands client back to the loop; a stopped hub has already closed it.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.topic]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.topic)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, clients := range h.rooms {
		for client := range clients {
			close(client.send)
		}
		delete(h.rooms, topic)
	}
}

// Publish queues an event for every subscriber of topic. It never blocks:
// when the queue is full the event is dropped and logged.
func (h *Hub) Publish(topic, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.WithError(err).WithField("type", eventType).Error("marshal websocket payload")
		return
	}

	event := Event{Type: eventType, Topic: topic, At: h.now().UTC(), Payload: raw}
	select {
	case h.broadcast <- event:
	default:
		h.logger.WithFields(logrus.Fields{
			"topic": topic,
			"type":  eventType,
		}).Warn("websocket broadcast queue full, event dropped")
	}
}

// Subscribers returns the number of clients registered on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}
