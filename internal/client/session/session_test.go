package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/talkative/internal/client/session"
	"github.com/zhouzirui/talkative/internal/model/chat"
)

// fakeServer accepts channel connections, checks the setup handshake
// and optionally acknowledges it.
type fakeServer struct {
	srv         *httptest.Server
	dials       atomic.Int32
	acknowledge bool
	deliver     chan chat.Event
}

func newFakeServer(t *testing.T, acknowledge bool) *fakeServer {
	t.Helper()

	fs := &fakeServer{acknowledge: acknowledge, deliver: make(chan chat.Event, 8)}
	upgrader := websocket.Upgrader{}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		fs.dials.Add(1)

		var setup chat.Event
		if err := conn.ReadJSON(&setup); err != nil {
			t.Errorf("read setup: %v", err)
			return
		}
		if setup.Name != chat.EventSetup {
			t.Errorf("expected setup handshake, got %q", setup.Name)
			return
		}

		if fs.acknowledge {
			connected, _ := chat.NewEvent(chat.EventConnected, nil)
			if err := conn.WriteJSON(connected); err != nil {
				return
			}
		}

		// Discard inbound frames so emits never back up; the read
		// error signals the channel went away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case ev := <-fs.deliver:
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func TestOpenHandshakeAndDispatch(t *testing.T) {
	fs := newFakeServer(t, true)

	sess := session.New(fs.srv.URL, chat.User{ID: "alice", Name: "Alice"}, "token")
	received := make(chan chat.Event, 1)
	sess.OnEvent(func(ev chat.Event) { received <- ev })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sess.Open(ctx); err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer sess.Close()

	if err := sess.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady err: %v", err)
	}
	if !sess.Ready() {
		t.Fatal("expected readiness after acknowledgment")
	}

	msg := chat.Message{ID: "m1", ChatID: "c1", SenderID: "bob", Content: "hi"}
	ev, _ := chat.NewEvent(chat.EventMessageReceived, msg)
	fs.deliver <- ev

	select {
	case got := <-received:
		if got.Name != chat.EventMessageReceived {
			t.Fatalf("unexpected event: %q", got.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never dispatched")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	fs := newFakeServer(t, true)

	sess := session.New(fs.srv.URL, chat.User{ID: "alice"}, "token")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sess.Open(ctx); err != nil {
		t.Fatalf("first Open err: %v", err)
	}
	defer sess.Close()
	if err := sess.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady err: %v", err)
	}

	if err := sess.Open(ctx); err != nil {
		t.Fatalf("second Open err: %v", err)
	}
	if got := fs.dials.Load(); got != 1 {
		t.Fatalf("expected a single channel, server saw %d dials", got)
	}
}

func TestEmitBeforeReadiness(t *testing.T) {
	fs := newFakeServer(t, false) // never acknowledges

	sess := session.New(fs.srv.URL, chat.User{ID: "alice"}, "token")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sess.Open(ctx); err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer sess.Close()

	ev, _ := chat.NewEvent(chat.EventNewMessage, chat.Message{ID: "m1"})
	if err := sess.Emit(ev); !errors.Is(err, session.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := sess.JoinRoom("c1"); !errors.Is(err, session.ErrNotReady) {
		t.Fatalf("expected ErrNotReady from JoinRoom, got %v", err)
	}
}

func TestOpenAfterClose(t *testing.T) {
	fs := newFakeServer(t, true)

	sess := session.New(fs.srv.URL, chat.User{ID: "alice"}, "token")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sess.Open(ctx); err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	if err := sess.Open(ctx); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
