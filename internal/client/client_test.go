package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/talkative/internal/auth"
	"github.com/zhouzirui/talkative/internal/client"
	"github.com/zhouzirui/talkative/internal/handler"
	"github.com/zhouzirui/talkative/internal/model/chat"
	chatservice "github.com/zhouzirui/talkative/internal/service/chat"
	"github.com/zhouzirui/talkative/internal/service/hub"
)

type fixture struct {
	srv    *httptest.Server
	signer *auth.Signer
	c1     chat.Chat
	c2     chat.Chat
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	chatSvc := chatservice.NewService()
	ctx := context.Background()
	c1, err := chatSvc.CreateChat(ctx, "first", false, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}
	c2, err := chatSvc.CreateChat(ctx, "second", false, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}

	signer := auth.NewSigner("test-secret", time.Hour)
	eventHub := hub.New()
	t.Cleanup(eventHub.CloseAll)

	srv := httptest.NewServer(handler.NewRouter(chatSvc, eventHub, signer))
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, signer: signer, c1: c1, c2: c2}
}

func (f *fixture) signIn(t *testing.T, userID string) *client.Client {
	t.Helper()

	token, err := f.signer.Sign(userID)
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}

	core := client.New(client.Config{
		ServerURL:     f.srv.URL,
		Identity:      chat.User{ID: userID, Name: userID},
		Token:         token,
		TypingTimeout: 150 * time.Millisecond,
	})
	t.Cleanup(func() { core.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := core.Connect(ctx); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	if err := core.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady err: %v", err)
	}
	return core
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSendNotifyAcknowledgeScenario(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	alice := f.signIn(t, "alice")
	bob := f.signIn(t, "bob")

	// Alice views c1 while Bob views c2.
	if err := alice.OpenChat(ctx, f.c1.ID); err != nil {
		t.Fatalf("alice OpenChat err: %v", err)
	}
	if err := bob.OpenChat(ctx, f.c2.ID); err != nil {
		t.Fatalf("bob OpenChat err: %v", err)
	}

	sent, err := alice.Send(ctx, "hi")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}

	// Bob is not viewing c1, so the message lands in the pending set.
	waitFor(t, "bob's notification", func() bool {
		return bob.Notify.Count(f.c1.ID) == 1
	})
	if got := len(bob.Stream.Messages()); got != 0 {
		t.Fatalf("c1 traffic must not enter bob's c2 stream, got %d entries", got)
	}

	// Switching into c1 acknowledges the pending entries and loads the
	// persisted message.
	if err := bob.OpenChat(ctx, f.c1.ID); err != nil {
		t.Fatalf("bob OpenChat c1 err: %v", err)
	}
	if got := bob.Notify.Count(f.c1.ID); got != 0 {
		t.Fatalf("acknowledge should empty c1's pending set, have %d", got)
	}

	messages := bob.Stream.Messages()
	if len(messages) != 1 || messages[0].ID != sent.ID {
		t.Fatalf("unexpected history after switch: %+v", messages)
	}
}

func TestLiveMessageReachesViewerOnce(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	alice := f.signIn(t, "alice")
	bob := f.signIn(t, "bob")

	if err := alice.OpenChat(ctx, f.c1.ID); err != nil {
		t.Fatalf("alice OpenChat err: %v", err)
	}
	if err := bob.OpenChat(ctx, f.c1.ID); err != nil {
		t.Fatalf("bob OpenChat err: %v", err)
	}

	sent, err := alice.Send(ctx, "hello there")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}

	waitFor(t, "bob's live merge", func() bool {
		messages := bob.Stream.Messages()
		return len(messages) == 1 && messages[0].ID == sent.ID
	})

	if got := len(bob.Notify.Pending()); got != 0 {
		t.Fatalf("active-conversation traffic must not notify, have %d", got)
	}
	// The sender's own sequence holds the message exactly once despite
	// append-then-broadcast.
	if got := len(alice.Stream.Messages()); got != 1 {
		t.Fatalf("alice's sequence should hold one entry, has %d", got)
	}
}

func TestRemoteTypingPropagates(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	alice := f.signIn(t, "alice")
	bob := f.signIn(t, "bob")

	changes := make(chan bool, 8)
	bob.OnRemoteTyping(func(v bool) { changes <- v })

	if err := alice.OpenChat(ctx, f.c1.ID); err != nil {
		t.Fatalf("alice OpenChat err: %v", err)
	}
	if err := bob.OpenChat(ctx, f.c1.ID); err != nil {
		t.Fatalf("bob OpenChat err: %v", err)
	}
	// Let the server process both room joins before typing starts.
	time.Sleep(200 * time.Millisecond)

	alice.Keystroke()

	select {
	case v := <-changes:
		if !v {
			t.Fatal("expected remote typing to flip on first")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("typing signal never arrived")
	}

	// After the quiet period the stop event clears the flag.
	select {
	case v := <-changes:
		if v {
			t.Fatal("expected remote typing to clear")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stop typing signal never arrived")
	}
}
