// Package notify collects messages that arrive for conversations the
// user is not currently viewing.
package notify

import (
	"sync"

	"github.com/zhouzirui/talkative/internal/model/chat"
)

// Classification of an inbound message relative to the active
// conversation.
type Classification int

const (
	ForActiveChat Classification = iota
	ForOtherChat
)

// Classify compares a message against the conversation active at the
// moment of arrival.
func Classify(msg chat.Message, activeChatID string) Classification {
	if activeChatID != "" && msg.ChatID == activeChatID {
		return ForActiveChat
	}
	return ForOtherChat
}

// Aggregator owns the pending-notification set across all
// conversations. Entries are unique by message id and live until the
// conversation is acknowledged or the entry dismissed; they are never
// time-expired.
type Aggregator struct {
	mu      sync.Mutex
	pending map[string]chat.Message
	order   []string // message ids in arrival order

	onChanged func([]chat.Message)
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{pending: make(map[string]chat.Message)}
}

// OnChanged registers the presentation hook fired after every
// mutation of the pending set.
func (a *Aggregator) OnChanged(f func([]chat.Message)) {
	a.onChanged = f
}

// Add records a message for a non-active conversation. Redelivered
// message ids are ignored, so duplicate delivery never inflates badge
// counts. It reports whether the entry was inserted.
func (a *Aggregator) Add(msg chat.Message) bool {
	a.mu.Lock()
	if _, exists := a.pending[msg.ID]; exists {
		a.mu.Unlock()
		return false
	}
	a.pending[msg.ID] = msg
	a.order = append(a.order, msg.ID)
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(snapshot)
	return true
}

// Acknowledge drops every pending entry for one conversation; invoked
// when the user navigates into it. Other conversations' entries are
// untouched.
func (a *Aggregator) Acknowledge(chatID string) {
	a.mu.Lock()
	changed := false
	kept := a.order[:0]
	for _, id := range a.order {
		if a.pending[id].ChatID == chatID {
			delete(a.pending, id)
			changed = true
			continue
		}
		kept = append(kept, id)
	}
	a.order = kept
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	if changed {
		a.notify(snapshot)
	}
}

// Dismiss removes a single entry by message id.
func (a *Aggregator) Dismiss(messageID string) {
	a.mu.Lock()
	if _, exists := a.pending[messageID]; !exists {
		a.mu.Unlock()
		return
	}
	delete(a.pending, messageID)
	kept := a.order[:0]
	for _, id := range a.order {
		if id != messageID {
			kept = append(kept, id)
		}
	}
	a.order = kept
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(snapshot)
}

// Pending returns the entries in arrival order.
func (a *Aggregator) Pending() []chat.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Count reports the number of pending entries for one conversation.
func (a *Aggregator) Count(chatID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, msg := range a.pending {
		if msg.ChatID == chatID {
			n++
		}
	}
	return n
}

func (a *Aggregator) snapshotLocked() []chat.Message {
	snapshot := make([]chat.Message, 0, len(a.order))
	for _, id := range a.order {
		snapshot = append(snapshot, a.pending[id])
	}
	return snapshot
}

// notify runs outside the lock so hooks may call back into the
// aggregator.
func (a *Aggregator) notify(snapshot []chat.Message) {
	if a.onChanged != nil {
		a.onChanged(snapshot)
	}
}
