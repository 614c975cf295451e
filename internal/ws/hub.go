package ws

import (
	"encoding/json"
	"sync"

	"arebasic/internal/logger"
	"arebasic/internal/service"
)

// Hub fans session events out to every socket an identity has open
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.Identity]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.Identity] = set
	}
	set[c] = struct{}{}
	logger.Debug("ws client registered", "identity", c.Identity, "sockets", len(set))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.Identity]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		c.closeSend()
	}
	if len(set) == 0 {
		delete(h.clients, c.Identity)
	}
}

// Connected returns the number of open sockets for an identity
func (h *Hub) Connected(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identity])
}

// Notify implements service.Notifier. Slow sockets drop events instead of
// blocking the session.
func (h *Hub) Notify(identity string, event service.SessionEvent) {
	msg, err := json.Marshal(outbound{Type: event.Type, Data: event})
	if err != nil {
		logger.Error("ws marshal event", "error", err, "type", event.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[identity] {
		if !c.trySend(msg) {
			logger.Warn("ws send buffer full, dropping event", "identity", identity, "type", event.Type)
		}
	}
}

// Close disconnects every socket
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for identity, set := range h.clients {
		for c := range set {
			c.closeSend()
		}
		delete(h.clients, identity)
	}
}
