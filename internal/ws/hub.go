package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// clientCount mirrors len(clients) for readers outside the hub
	// goroutine.
	clientCount int64
}

// Message represents a WebSocket message structure
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, implement proper origin checking
		return true
	},
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the WebSocket hub
func (h *Hub) Run() {
	for {
		h.runOnce()
	}
}

// runOnce services one hub event. Only this goroutine touches the
// clients map; the count is mirrored for concurrent readers.
func (h *Hub) runOnce() {
	defer atomic.StoreInt64(&h.clientCount, int64(len(h.clients)))

	select {
	case client := <-h.register:
		h.clients[client] = true
		log.Printf("Client connected. Total clients: %d", len(h.clients))

		welcome := Message{
			Type:      "connected",
			Timestamp: time.Now(),
			Data:      map[string]string{"status": "connected"},
		}
		if data, err := json.Marshal(welcome); err == nil {
			select {
			case client.send <- data:
			default:
				close(client.send)
				delete(h.clients, client)
			}
		}

	case client := <-h.unregister:
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
			log.Printf("Client disconnected. Total clients: %d", len(h.clients))
		}

	case message := <-h.broadcast:
		for client := range h.clients {
			select {
			case client.send <- message:
			default:
				close(client.send)
				delete(h.clients, client)
			}
		}
	}
}

// broadcastMessage marshals and queues a message for every client.
func (h *Hub) broadcastMessage(msgType string, data interface{}) {
	message := Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msgType, err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Println("Broadcast channel is full, dropping message")
	}
}

// BroadcastSample broadcasts an accepted sensor sample to all clients
func (h *Hub) BroadcastSample(sample *models.Sample) {
	h.broadcastMessage("sample", sample)
}

// BroadcastDecisionEvent broadcasts a decision and its outcome to all clients
func (h *Hub) BroadcastDecisionEvent(event *models.DecisionEvent) {
	h.broadcastMessage("decision", event)
}

// BroadcastAnomalyEvent broadcasts a detected anomaly to all clients
func (h *Hub) BroadcastAnomalyEvent(event *models.AnomalyEvent) {
	h.broadcastMessage("anomaly", event)
}

// BroadcastSystemHealth broadcasts the safety state, used on failsafe
// transitions and periodic status reports
func (h *Hub) BroadcastSystemHealth(health *models.SystemHealth) {
	h.broadcastMessage("system_health", health)
}

// BroadcastPumpStatus broadcasts one actuator's state snapshot
func (h *Hub) BroadcastPumpStatus(status *models.PumpStatus) {
	h.broadcastMessage("pump_status", status)
}

// BroadcastError broadcasts error messages to all clients
func (h *Hub) BroadcastError(errorMsg string) {
	h.broadcastMessage("error", map[string]string{"error": errorMsg})
}

// GetConnectedClientsCount returns the number of connected clients. Safe
// to call from any goroutine.
func (h *Hub) GetConnectedClientsCount() int {
	return int(atomic.LoadInt64(&h.clientCount))
}

// HandleWebSocket handles WebSocket connection requests
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Clients only listen; inbound frames are logged and ignored.
		log.Printf("Received message from client: %s", message)
	}
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to current message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
