package ws

import (
	"sync"

	"github.com/Wyydra/mcsrelay/internal/core/domain"
	"github.com/Wyydra/mcsrelay/internal/core/port"
	"github.com/rs/zerolog/log"
)

// implements port.ClientRegistry
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.ClientID]port.Client
	stopped bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.ClientID]port.Client),
	}
}

// Register stores c under id. After Stop, c is closed instead.
func (h *Hub) Register(id domain.ClientID, c port.Client) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		c.Close()
		return
	}
	h.clients[id] = c
	count := len(h.clients)
	h.mu.Unlock()

	log.Info().Str("client_id", id.String()).Int("count", count).Msg("Client registered")
}

func (h *Hub) Unregister(id domain.ClientID) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Info().Str("client_id", id.String()).Int("count", count).Msg("Client unregistered")
	}
}

func (h *Hub) Lookup(id domain.ClientID) (port.Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every registered client. Their read loops then unwind and
// unregister themselves.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	clients := make(map[domain.ClientID]port.Client, len(h.clients))
	for id, c := range h.clients {
		clients[id] = c
	}
	h.mu.Unlock()

	log.Info().Int("count", len(clients)).Msg("Stopping hub. Disconnecting all clients.")
	for id, c := range clients {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("client_id", id.String()).Msg("Error closing client connection")
		}
	}
}
