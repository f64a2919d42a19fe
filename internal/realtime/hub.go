package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains (tenant, user) -> set of connections and delivers events.
// Uses Redis pub/sub for horizontal scaling: events are published to the
// user's channel and every instance delivers to its local sockets.
type Hub struct {
	// room key (tenant:user) -> map[clientID]*Client
	rooms  map[string]map[string]*Client
	subs   map[string]func() // cancel Redis subscription per room
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// Publisher publishes a user event for cross-instance delivery.
type Publisher interface {
	PublishUserEvent(tenantID string, userID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a user's channel and invokes handler per event.
type Subscriber interface {
	SubscribeUser(tenantID string, userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

func roomKey(tenantID string, userID uuid.UUID) string {
	return tenantID + ":" + userID.String()
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to its user room. Starts the Redis subscription for
// the room when the first socket of that user connects on this instance.
func (h *Hub) Register(c *Client) {
	key := roomKey(c.TenantID, c.UserID)
	h.mu.Lock()
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeUser(c.TenantID, c.UserID, func(event string, payload []byte) {
				h.deliverLocal(key, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[key] = cancel
			}
		}
	}
	h.rooms[key][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected",
		zap.String("client_id", c.ID),
		zap.String("tenant_id", c.TenantID),
		zap.String("user_id", c.UserID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the last
// socket of that user on this instance disconnects.
func (h *Hub) Unregister(c *Client) {
	key := roomKey(c.TenantID, c.UserID)
	h.mu.Lock()
	if m, ok := h.rooms[key]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, key)
			if cancel, ok := h.subs[key]; ok {
				cancel()
				delete(h.subs, key)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected",
		zap.String("client_id", c.ID),
		zap.String("tenant_id", c.TenantID),
		zap.String("user_id", c.UserID.String()))
}

// deliverLocal fans an event out to the user's sockets on this instance.
func (h *Hub) deliverLocal(key string, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[key]
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// NotifyUser pushes an event to one user across all instances. The event goes
// through Redis so each instance's subscriber delivers it exactly once to its
// local sockets; when no publisher is wired, delivery is local only.
func (h *Hub) NotifyUser(tenantID string, userID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishUserEvent(tenantID, userID, event, data); err == nil {
			return
		}
		h.logger.Warn("realtime publish failed, delivering locally",
			zap.String("tenant_id", tenantID), zap.String("user_id", userID.String()))
	}
	h.deliverLocal(roomKey(tenantID, userID), event, json.RawMessage(data))
}

// ConnectionCount returns the number of local sockets for a user.
func (h *Hub) ConnectionCount(tenantID string, userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey(tenantID, userID)])
}
