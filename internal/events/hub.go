// Package events pushes catalog-change notifications to connected
// front ends so a static site can refresh after a correction lands.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CatalogEvent describes one mutation applied through the API.
type CatalogEvent struct {
	Type     string    `json:"type"` // "coin.update", "variant.update", "coin.merge"
	CoinID   string    `json:"coin_id,omitempty"`
	Variant  string    `json:"variant_id,omitempty"`
	EditedBy string    `json:"edited_by,omitempty"`
	At       time.Time `json:"at"`
}

type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

type Stats struct {
	Clients int `json:"clients"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// Broadcast fans an event out to every connected client. Dead clients
// are dropped on write failure.
func (h *Hub) Broadcast(ev CatalogEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.clients {
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.clients, ws)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Clients: len(h.clients)}
}
