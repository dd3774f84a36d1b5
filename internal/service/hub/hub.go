package hub

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/talkative/internal/model/chat"
)

// Hub tracks connected user channels and their room membership, and
// fans events out to them. It is the only writer to the server side of
// each websocket.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client             // keyed by user id
	rooms   map[string]map[string]struct{} // chat id -> joined user ids
}

type client struct {
	userID string

	mu   sync.Mutex // serializes writes to the conn
	conn *websocket.Conn
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Register binds a user's websocket after the setup handshake. An
// existing channel for the same user is closed first, keeping one
// channel per signed-in session.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.clients[userID]; exists {
		old.conn.Close()
	}
	h.clients[userID] = &client{userID: userID, conn: conn}
}

// Unregister drops the user's channel if it is still the given conn.
// Room membership is kept; a reconnecting user re-joins explicitly.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[userID]; exists && current.conn == conn {
		delete(h.clients, userID)
	}
}

// JoinRoom subscribes the user to a chat's room. Earlier rooms are not
// revoked; clients filter stale-room traffic by chat id.
func (h *Hub) JoinRoom(userID, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[chatID]
	if !exists {
		room = make(map[string]struct{})
		h.rooms[chatID] = room
	}
	room[userID] = struct{}{}
}

// BroadcastToRoom delivers an event to every user joined to the chat's
// room except the sender. Used for presence relays.
func (h *Hub) BroadcastToRoom(chatID, senderID string, ev chat.Event) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[chatID]))
	for userID := range h.rooms[chatID] {
		if userID == senderID {
			continue
		}
		if c, connected := h.clients[userID]; connected {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(ev)
	}
}

// SendToUsers delivers an event to each listed user that is currently
// connected, skipping exceptID. Used for message fan-out so
// participants receive messages for chats they are not viewing.
func (h *Hub) SendToUsers(userIDs []string, exceptID string, ev chat.Event) {
	h.mu.RLock()
	targets := make([]*client, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == exceptID {
			continue
		}
		if c, connected := h.clients[userID]; connected {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(ev)
	}
}

// SendToUser delivers an event to one user, if connected.
func (h *Hub) SendToUser(userID string, ev chat.Event) {
	h.mu.RLock()
	c, connected := h.clients[userID]
	h.mu.RUnlock()

	if connected {
		c.send(ev)
	}
}

// Ping writes a ping frame on the user's channel, serialized with the
// hub's event writes. It reports an error once the conn is gone or has
// been replaced, so keepalive loops know to stop.
func (h *Hub) Ping(userID string, conn *websocket.Conn) error {
	h.mu.RLock()
	c, connected := h.clients[userID]
	h.mu.RUnlock()

	if !connected || c.conn != conn {
		return websocket.ErrCloseSent
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// CloseAll tears down every registered channel on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, c := range h.clients {
		c.conn.Close()
		delete(h.clients, userID)
	}
}

func (c *client) send(ev chat.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(ev); err != nil {
		log.Printf("[hub] write to %s failed: %v", c.userID, err)
	}
}
