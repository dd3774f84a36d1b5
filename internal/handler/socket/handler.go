package socket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/talkative/internal/middleware"
	"github.com/zhouzirui/talkative/internal/model/chat"
	chatservice "github.com/zhouzirui/talkative/internal/service/chat"
	"github.com/zhouzirui/talkative/internal/service/hub"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Handler upgrades websocket connections and bridges channel events to
// the hub and the history store's chat metadata.
type Handler struct {
	hub      *hub.Hub
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(h *hub.Hub, chatSvc *chatservice.Service) *Handler {
	return &Handler{
		hub:     h,
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes wires the channel endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleSocket)
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[socket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// The channel is mute until the client introduces itself.
	var setup chat.Event
	if err := conn.ReadJSON(&setup); err != nil {
		log.Printf("[socket] setup read failed: %v", err)
		return
	}
	if setup.Name != chat.EventSetup {
		log.Printf("[socket] expected %q, got %q", chat.EventSetup, setup.Name)
		return
	}
	identity, err := setup.Identity()
	if err != nil {
		log.Printf("[socket] %v", err)
		return
	}
	if identity.ID != userID {
		log.Printf("[socket] identity %q does not match credential %q", identity.ID, userID)
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	log.Printf("[socket] channel open user=%s", userID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.pingLoop(ctx, userID, conn)

	connected, err := chat.NewEvent(chat.EventConnected, nil)
	if err != nil {
		log.Printf("[socket] %v", err)
		return
	}
	h.hub.SendToUser(userID, connected)

	for {
		var ev chat.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[socket] read error user=%s: %v", userID, err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleEvent(r.Context(), userID, ev)
	}
}

func (h *Handler) handleEvent(ctx context.Context, userID string, ev chat.Event) {
	switch ev.Name {
	case chat.EventJoinChat:
		h.handleJoinChat(ctx, userID, ev)
	case chat.EventTyping, chat.EventStopTyping:
		h.handlePresence(userID, ev)
	case chat.EventNewMessage:
		h.handleNewMessage(ctx, userID, ev)
	default:
		log.Printf("[socket] unsupported event %q user=%s", ev.Name, userID)
	}
}

func (h *Handler) handleJoinChat(ctx context.Context, userID string, ev chat.Event) {
	chatID, err := ev.ChatID()
	if err != nil {
		log.Printf("[socket] %v", err)
		return
	}

	c, err := h.chatSvc.GetChat(ctx, chatID)
	if err != nil {
		log.Printf("[socket] join rejected user=%s chat=%s: %v", userID, chatID, err)
		return
	}
	if !c.HasUser(userID) {
		log.Printf("[socket] join rejected user=%s chat=%s: not a participant", userID, chatID)
		return
	}

	h.hub.JoinRoom(userID, chatID)
	log.Printf("[socket] user=%s joined room chat=%s", userID, chatID)
}

// handlePresence relays typing events to the chat's room without a
// payload; presence is ephemeral and never persisted.
func (h *Handler) handlePresence(userID string, ev chat.Event) {
	chatID, err := ev.ChatID()
	if err != nil {
		log.Printf("[socket] %v", err)
		return
	}

	relay, err := chat.NewEvent(ev.Name, nil)
	if err != nil {
		log.Printf("[socket] %v", err)
		return
	}
	h.hub.BroadcastToRoom(chatID, userID, relay)
}

// handleNewMessage fans a freshly persisted message out to every chat
// participant except the sender, whether or not they have the chat
// open. Receivers decide between stream merge and notification.
func (h *Handler) handleNewMessage(ctx context.Context, userID string, ev chat.Event) {
	msg, err := ev.Message()
	if err != nil {
		log.Printf("[socket] %v", err)
		return
	}
	if msg.SenderID != userID {
		log.Printf("[socket] drop spoofed message sender=%s user=%s", msg.SenderID, userID)
		return
	}

	c, err := h.chatSvc.GetChat(ctx, msg.ChatID)
	if err != nil {
		log.Printf("[socket] drop message for unknown chat=%s: %v", msg.ChatID, err)
		return
	}

	received, err := chat.NewEvent(chat.EventMessageReceived, msg)
	if err != nil {
		log.Printf("[socket] %v", err)
		return
	}
	h.hub.SendToUsers(c.UserIDs, userID, received)
}

func (h *Handler) pingLoop(ctx context.Context, userID string, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.hub.Ping(userID, conn); err != nil {
				return
			}
		}
	}
}
