package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// waitForCount polls the published client count until it matches or the
// deadline passes.
func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.GetConnectedClientsCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", h.GetConnectedClientsCount(), want)
}

func TestHubClientCount(t *testing.T) {
	h := NewHub()
	go h.Run()

	if got := h.GetConnectedClientsCount(); got != 0 {
		t.Fatalf("initial client count = %d, want 0", got)
	}

	client := &Client{hub: h, send: make(chan []byte, 8)}
	h.register <- client
	waitForCount(t, h, 1)

	h.unregister <- client
	waitForCount(t, h, 0)
}

func TestHubBroadcastPumpStatus(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := &Client{hub: h, send: make(chan []byte, 8)}
	h.register <- client
	waitForCount(t, h, 1)

	// Drain the welcome message first.
	select {
	case <-client.send:
	case <-time.After(2 * time.Second):
		t.Fatal("no welcome message received")
	}

	h.BroadcastPumpStatus(&models.PumpStatus{Channel: 2, IsActive: true})

	select {
	case payload := <-client.send:
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("invalid broadcast payload: %v", err)
		}
		if msg.Type != "pump_status" {
			t.Errorf("message type = %q, want pump_status", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pump status broadcast not delivered")
	}
}
