// Package session owns the single long-lived channel between a
// signed-in user and the server. Its lifecycle is tied to sign-in and
// sign-out, never to which conversation is on screen.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/talkative/internal/model/chat"
)

var (
	ErrNotReady = errors.New("channel is not ready")
	ErrClosed   = errors.New("session is closed")
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Handler receives server events in channel delivery order.
type Handler func(chat.Event)

// Session is the guarded singleton channel for one signed-in session.
// Open is idempotent while the channel stays up, so UI re-mounts never
// create duplicate channels.
type Session struct {
	url      string
	token    string
	identity chat.User

	handler     Handler
	onConnected func()
	onError     func(error)

	mu      sync.Mutex // guards conn state and serializes writes
	conn    *websocket.Conn
	ready   bool
	closed  bool
	readyCh chan struct{}
}

// New prepares a session against a server base URL. The channel is not
// dialed until Open.
func New(serverURL string, identity chat.User, token string) *Session {
	return &Session{
		url:      socketURL(serverURL),
		token:    token,
		identity: identity,
		readyCh:  make(chan struct{}),
	}
}

// socketURL converts the server's http base URL into the ws endpoint.
func socketURL(serverURL string) string {
	url := strings.TrimSuffix(serverURL, "/")
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}

// OnEvent registers the dispatcher for server events other than the
// readiness acknowledgment. Set it before Open.
func (s *Session) OnEvent(h Handler) {
	s.handler = h
}

// OnConnected registers a hook fired once the server acknowledges the
// setup handshake. Set it before Open.
func (s *Session) OnConnected(f func()) {
	s.onConnected = f
}

// OnError registers a hook fired when the channel drops outside of an
// explicit Close. Set it before Open.
func (s *Session) OnError(f func(error)) {
	s.onError = f
}

// Open dials the channel and emits the setup handshake. Calling it
// while the channel is already up is a no-op.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial channel: %w", err)
	}

	s.mu.Lock()
	if s.closed || s.conn != nil {
		// Lost the race against another Open or a Close.
		s.mu.Unlock()
		conn.Close()
		if s.closed {
			return ErrClosed
		}
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	setup, err := chat.NewEvent(chat.EventSetup, s.identity)
	if err != nil {
		s.drop(conn)
		return err
	}
	if err := s.write(conn, setup); err != nil {
		s.drop(conn)
		return fmt.Errorf("setup handshake: %w", err)
	}

	go s.readLoop(conn)
	return nil
}

// Ready reports whether the server has acknowledged the setup
// handshake. Presence emitters must check it and skip when false.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// WaitReady blocks until the readiness signal or context expiry.
func (s *Session) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	ch := s.readyCh
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit sends an event over the channel. It fails with ErrNotReady
// until the server acknowledges setup; callers decide whether that is
// reportable (messages) or ignorable (presence).
func (s *Session) Emit(ev chat.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.ready {
		return ErrNotReady
	}
	return s.writeLocked(s.conn, ev)
}

// JoinRoom asks the server to scope room traffic to a conversation. It
// must be reissued on every active-conversation switch; prior rooms
// are not revoked, stale traffic is filtered by chat id downstream.
func (s *Session) JoinRoom(chatID string) error {
	ev, err := chat.NewEvent(chat.EventJoinChat, chatID)
	if err != nil {
		return err
	}
	return s.Emit(ev)
}

// Close tears the channel down for good; scoped to sign-out.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}

	deadline := time.Now().Add(writeTimeout)
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := s.conn.Close()
	s.conn = nil
	s.ready = false
	return err
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.drop(conn)

	for {
		var ev chat.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[session] channel read error: %v", err)
				s.reportError(err)
			}
			return
		}

		switch ev.Name {
		case chat.EventConnected:
			s.markReady()
		default:
			if s.handler != nil {
				s.handler(ev)
			}
		}
	}
}

func (s *Session) markReady() {
	s.mu.Lock()
	already := s.ready
	s.ready = true
	if !already {
		close(s.readyCh)
	}
	s.mu.Unlock()

	if !already && s.onConnected != nil {
		s.onConnected()
	}
}

// reportError forwards a channel failure unless Close caused it.
func (s *Session) reportError(err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed && s.onError != nil {
		s.onError(err)
	}
}

// drop clears state after the channel fails, so a later Open may
// re-establish it within the same sign-in.
func (s *Session) drop(conn *websocket.Conn) {
	conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
		if s.ready {
			s.ready = false
			s.readyCh = make(chan struct{})
		}
	}
}

func (s *Session) write(conn *websocket.Conn, ev chat.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(conn, ev)
}

func (s *Session) writeLocked(conn *websocket.Conn, ev chat.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(ev)
}
