package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bugbase/bugbase/internal/agent"
)

// EventType represents the type of event stream message
type EventType string

const (
	EventTypeApproval EventType = "approval"
	EventTypeMerge    EventType = "merge"
	EventTypeBug      EventType = "bug"
)

// Event is one message on the event stream WebSocket
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// EventsHandler pushes approval and merge events to connected UI clients.
// Clients are write-only consumers; anything they send is discarded.
type EventsHandler struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
}

// NewEventsHandler creates a new event stream handler
func NewEventsHandler() *EventsHandler {
	return &EventsHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// SetupRoutes configures WebSocket routes
func (h *EventsHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/events", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and parks it in the broadcast set
func (h *EventsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Drain the connection until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

// ClientCount returns how many clients are currently connected
func (h *EventsHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends an event to every connected client. Connections that fail
// to accept the write are dropped.
func (h *EventsHandler) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// BroadcastApproval pushes an approval state transition to all clients
func (h *EventsHandler) BroadcastApproval(ev agent.ApprovalEvent) {
	h.Broadcast(Event{Type: EventTypeApproval, Data: ev})
}
