// Package status pushes dataset refresh notifications to connected
// dashboard clients over WebSocket.
package status

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is a notification broadcast to every connected client.
type Event struct {
	Type      string `json:"type"`
	DatasetID uint   `json:"dataset_id,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EventDatasetRefreshed signals that a dataset fetch completed and widgets
// bound to it should re-render.
const EventDatasetRefreshed = "dataset.refreshed"

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub is the registry of connected WebSocket clients. It is constructed
// explicitly and shut down at teardown; there is no package-level state.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*client
	closed   bool
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast queues an event for every connected client. Slow clients drop
// events rather than block the caller.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cl := range h.clients {
		select {
		case cl.send <- event:
		default:
		}
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown disconnects all clients and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, cl := range h.clients {
		close(cl.send)
		delete(h.clients, id)
	}
}

func (h *Hub) register(conn *websocket.Conn) (string, *client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, false
	}
	id := uuid.New().String()
	cl := &client{conn: conn, send: make(chan Event, 16)}
	h.clients[id] = cl
	return id, cl, true
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[id]; ok {
		close(cl.send)
		delete(h.clients, id)
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams broadcast events
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, cl, ok := h.register(conn)
	if !ok {
		return
	}
	defer h.unregister(id)

	// Drain the read side so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister(id)
				return
			}
		}
	}()

	for event := range cl.send {
		if err := conn.WriteJSON(event); err != nil {
			break
		}
	}
}
