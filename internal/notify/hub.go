package notify

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/riveredge/platform/pkg/logger"
)

type clientKey struct {
	tenantID uint
	userID   uint
}

// Hub maintains the set of connected websocket clients, keyed by tenant and
// user. A user may hold several connections (multiple tabs); delivery goes
// to all of them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[clientKey]map[*Client]bool
	register   chan *Client
	unregister chan *Client
}

// NewHub creates an empty hub. Call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[clientKey]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes register/unregister requests until the process exits.
func (h *Hub) Run() {
	log := logger.GetLogger()
	for {
		select {
		case client := <-h.register:
			key := clientKey{tenantID: client.TenantID, userID: client.UserID}
			h.mu.Lock()
			if h.clients[key] == nil {
				h.clients[key] = make(map[*Client]bool)
			}
			h.clients[key][client] = true
			h.mu.Unlock()
			log.Debug("Notification client connected",
				zap.Uint("tenant_id", client.TenantID),
				zap.Uint("user_id", client.UserID))

		case client := <-h.unregister:
			key := clientKey{tenantID: client.TenantID, userID: client.UserID}
			h.mu.Lock()
			if conns, ok := h.clients[key]; ok && conns[client] {
				delete(conns, client)
				close(client.send)
				if len(conns) == 0 {
					delete(h.clients, key)
				}
			}
			h.mu.Unlock()
			log.Debug("Notification client disconnected",
				zap.Uint("tenant_id", client.TenantID),
				zap.Uint("user_id", client.UserID))
		}
	}
}

// ConnectionCount reports the number of live websocket connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// SendToUser delivers a payload to every live connection of the user.
// Delivery is best effort: a full buffer or absent connection is not an
// error, the persisted message row remains the durable copy.
func (h *Hub) SendToUser(tenantID, userID uint, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.GetLogger().Warn("Failed to marshal notification", zap.Error(err))
		return false
	}

	h.mu.RLock()
	conns := h.clients[clientKey{tenantID: tenantID, userID: userID}]
	delivered := false
	for client := range conns {
		select {
		case client.send <- data:
			delivered = true
		default:
			// buffer full, drop
		}
	}
	h.mu.RUnlock()
	return delivered
}
