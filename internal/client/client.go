// Package client composes the real-time synchronization core behind a
// conversation view: one channel per signed-in session, a message
// stream for the active conversation, typing presence, and a
// deduplicated notification queue for every other conversation.
package client

import (
	"context"
	"log"
	"time"

	"github.com/zhouzirui/talkative/internal/client/history"
	"github.com/zhouzirui/talkative/internal/client/notify"
	"github.com/zhouzirui/talkative/internal/client/session"
	"github.com/zhouzirui/talkative/internal/client/stream"
	"github.com/zhouzirui/talkative/internal/client/typing"
	"github.com/zhouzirui/talkative/internal/model/chat"
)

// Config carries what the core needs from the surrounding application:
// the identity and opaque credential come from the identity provider,
// the server URL from deployment configuration.
type Config struct {
	ServerURL     string
	Identity      chat.User
	Token         string
	TypingTimeout time.Duration
}

// Client wires the session, stream controller, typing machine and
// notification aggregator together. The surrounding UI talks to this
// type only.
type Client struct {
	Session *session.Session
	Stream  *stream.Controller
	Typing  *typing.Machine
	Notify  *notify.Aggregator

	history *history.Client
}

// New assembles a core for one signed-in user.
func New(cfg Config) *Client {
	sess := session.New(cfg.ServerURL, cfg.Identity, cfg.Token)
	store := history.New(cfg.ServerURL, cfg.Token)
	aggregator := notify.New()

	c := &Client{
		Session: sess,
		Stream:  stream.New(sess, store, aggregator),
		Typing:  typing.New(sess, cfg.TypingTimeout),
		Notify:  aggregator,
		history: store,
	}

	sess.OnEvent(c.dispatch)
	return c
}

// dispatch runs on the session's read loop, so events keep their
// channel delivery order.
func (c *Client) dispatch(ev chat.Event) {
	switch ev.Name {
	case chat.EventMessageReceived:
		msg, err := ev.Message()
		if err != nil {
			log.Printf("[client] dropping malformed message event: %v", err)
			return
		}
		c.Stream.HandleMessage(msg)
	case chat.EventTyping, chat.EventStopTyping:
		c.Typing.HandleEvent(ev)
	default:
		log.Printf("[client] unhandled event %q", ev.Name)
	}
}

// Connect opens the channel; idempotent per sign-in.
func (c *Client) Connect(ctx context.Context) error {
	return c.Session.Open(ctx)
}

// WaitReady blocks until the server acknowledges the setup handshake.
func (c *Client) WaitReady(ctx context.Context) error {
	return c.Session.WaitReady(ctx)
}

// OpenChat makes a conversation active: pending notifications for it
// are acknowledged, typing state resets, history loads and the room is
// joined. A failed load leaves the previous view untouched.
func (c *Client) OpenChat(ctx context.Context, chatID string) error {
	c.Typing.SetActiveChat(chatID)
	c.Notify.Acknowledge(chatID)
	return c.Stream.SetActive(ctx, chatID)
}

// Keystroke forwards local input to the presence machine.
func (c *Client) Keystroke() {
	c.Typing.Keystroke()
}

// Send ends the local typing signal and sends the message through the
// persist-then-broadcast path.
func (c *Client) Send(ctx context.Context, content string) (chat.Message, error) {
	if content == "" {
		return chat.Message{}, stream.ErrEmptyInput
	}
	c.Typing.Stop()
	return c.Stream.Send(ctx, content)
}

// Chats lists the conversations available to the signed-in user.
func (c *Client) Chats(ctx context.Context) ([]chat.Chat, error) {
	return c.history.ListChats(ctx)
}

// OnMessages registers the message-sequence-changed hook.
func (c *Client) OnMessages(f func([]chat.Message)) {
	c.Stream.OnMessages(f)
}

// OnRemoteTyping registers the remote-typing-changed hook.
func (c *Client) OnRemoteTyping(f func(bool)) {
	c.Typing.OnRemoteChanged(f)
}

// OnNotifications registers the notification-set-changed hook.
func (c *Client) OnNotifications(f func([]chat.Message)) {
	c.Notify.OnChanged(f)
}

// OnError registers a hook for channel failures outside of Close.
func (c *Client) OnError(f func(error)) {
	c.Session.OnError(f)
}

// Close tears the channel down at sign-out.
func (c *Client) Close() error {
	return c.Session.Close()
}
