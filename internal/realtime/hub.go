package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventType names a store change pushed to dashboard clients.
type EventType string

const (
	EventConversationsReplaced EventType = "conversations.replaced"
	EventConversationUpdated   EventType = "conversation.updated"
	EventMessagesReplaced      EventType = "messages.replaced"
	EventMessagesAppended      EventType = "messages.appended"
	EventNotice                EventType = "notice"
)

// Event is a store change. Version increases with every change of the store
// that emitted it, so a snapshot taken at version v already reflects every
// event of that store up to v. Notices carry no version.
type Event struct {
	Type    EventType `json:"type"`
	Data    any       `json:"data,omitempty"`
	Version uint64    `json:"version,omitempty"`
}

// Notice is the payload of EventNotice, shown to the operator as a toast.
type Notice struct {
	Level       string `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Notifier receives store changes.
type Notifier interface {
	Notify(e Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

const clientBuffer = 32

// Client is one connected event stream.
type Client struct {
	ID       uuid.UUID
	Outbound chan Event
}

// Hub fans events out to connected clients. Slow clients lose events rather
// than blocking the stores.
type Hub struct {
	mu      sync.RWMutex
	logger  *logrus.Logger
	clients map[*Client]struct{}
	closed  bool
}

// NewHub creates an empty Hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
}

// NewClient registers a client.
func (h *Hub) NewClient() *Client {
	c := &Client{
		ID:       uuid.New(),
		Outbound: make(chan Event, clientBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.Outbound)
		return c
	}
	h.clients[c] = struct{}{}

	h.logger.WithField("client_id", c.ID).Debug("event client connected")
	return c
}

// RemoveClient unregisters c and closes its outbound channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Outbound)
	h.logger.WithField("client_id", c.ID).Debug("event client disconnected")
}

// Close disconnects every client. Clients created afterwards start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.Outbound)
	}
	h.closed = true
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify broadcasts e to every client.
func (h *Hub) Notify(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.Outbound <- e:
		default:
			h.logger.WithFields(logrus.Fields{
				"client_id": c.ID,
				"event":     e.Type,
			}).Warn("dropping event, client buffer full")
		}
	}
}
