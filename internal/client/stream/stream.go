// Package stream maintains the ordered, duplicate-free message view of
// the active conversation.
package stream

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/zhouzirui/talkative/internal/client/notify"
	"github.com/zhouzirui/talkative/internal/model/chat"
)

var (
	ErrEmptyInput   = errors.New("message content is empty")
	ErrNoActiveChat = errors.New("no active conversation")
)

// History is the request/response slice of the history store.
type History interface {
	Fetch(ctx context.Context, chatID string) ([]chat.Message, error)
	Send(ctx context.Context, chatID, content string) (chat.Message, error)
}

// Channel is the outbound surface of the connection session.
type Channel interface {
	JoinRoom(chatID string) error
	Emit(chat.Event) error
}

// Sink receives messages classified as belonging to other
// conversations.
type Sink interface {
	Add(chat.Message) bool
}

// Controller owns the live message sequence for the active
// conversation only; it holds no state for inactive conversations.
// Inbound messages merge idempotently by id and are never reordered.
type Controller struct {
	channel Channel
	store   History
	sink    Sink

	mu       sync.Mutex
	active   string // re-read at event resolution time, never captured
	messages []chat.Message
	seen     map[string]struct{}

	onMessages func([]chat.Message)
}

// New creates a controller with no active conversation.
func New(channel Channel, store History, sink Sink) *Controller {
	return &Controller{
		channel: channel,
		store:   store,
		sink:    sink,
		seen:    make(map[string]struct{}),
	}
}

// OnMessages registers the presentation hook fired after every change
// to the message sequence.
func (c *Controller) OnMessages(f func([]chat.Message)) {
	c.onMessages = f
}

// ActiveChat returns the conversation id inbound events are compared
// against at the moment they arrive.
func (c *Controller) ActiveChat() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SetActive switches the active conversation and loads its history.
// On load failure the previous sequence is left untouched and the
// error is surfaced; the user re-opens the conversation to retry.
func (c *Controller) SetActive(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.active = chatID
	c.mu.Unlock()

	return c.load(ctx, chatID)
}

// Reload re-fetches history for the active conversation.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	chatID := c.active
	c.mu.Unlock()

	if chatID == "" {
		return nil
	}
	return c.load(ctx, chatID)
}

func (c *Controller) load(ctx context.Context, chatID string) error {
	history, err := c.store.Fetch(ctx, chatID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.active != chatID {
		// The user switched away while the load was in flight; a stale
		// response must not clobber the newer conversation's view.
		c.mu.Unlock()
		return nil
	}
	c.messages = append([]chat.Message(nil), history...)
	c.seen = make(map[string]struct{}, len(history))
	for _, msg := range history {
		c.seen[msg.ID] = struct{}{}
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)

	if err := c.channel.JoinRoom(chatID); err != nil {
		return err
	}
	return nil
}

// Send persists the message, appends the authoritative copy, then
// broadcasts it so other participants receive it live. Persist comes
// first: broadcasting earlier risks recipients seeing a message that
// later fails to save.
func (c *Controller) Send(ctx context.Context, content string) (chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, ErrEmptyInput
	}

	c.mu.Lock()
	chatID := c.active
	c.mu.Unlock()
	if chatID == "" {
		return chat.Message{}, ErrNoActiveChat
	}

	msg, err := c.store.Send(ctx, chatID, content)
	if err != nil {
		// Not appended; the caller keeps the input so the user can
		// retry.
		return chat.Message{}, err
	}

	c.HandleMessage(msg)

	ev, err := chat.NewEvent(chat.EventNewMessage, msg)
	if err == nil {
		err = c.channel.Emit(ev)
	}
	if err != nil {
		// Already persisted; recipients reconcile on their next
		// history load.
		log.Printf("[stream] broadcast of %s failed: %v", msg.ID, err)
	}

	return msg, nil
}

// HandleMessage routes one live inbound message. The active id is read
// here, at resolution time, so the comparison always reflects the
// conversation active when the event arrived.
func (c *Controller) HandleMessage(msg chat.Message) {
	c.mu.Lock()
	if notify.Classify(msg, c.active) == notify.ForOtherChat {
		c.mu.Unlock()
		c.sink.Add(msg)
		return
	}

	if _, dup := c.seen[msg.ID]; dup {
		// Own broadcast echo or duplicate delivery.
		c.mu.Unlock()
		return
	}
	c.seen[msg.ID] = struct{}{}
	c.messages = append(c.messages, msg)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
}

// Messages returns a copy of the current sequence.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() []chat.Message {
	snapshot := make([]chat.Message, len(c.messages))
	copy(snapshot, c.messages)
	return snapshot
}

func (c *Controller) notify(snapshot []chat.Message) {
	if c.onMessages != nil {
		c.onMessages(snapshot)
	}
}
