// Package typing is the presence state machine for the active
// conversation: it debounces outbound typing signals and mirrors the
// remote participant's signals into a display flag.
package typing

import (
	"sync"
	"time"

	"github.com/zhouzirui/talkative/internal/model/chat"
)

// DefaultTimeout is the quiet period after the last keystroke before a
// stop-typing event is emitted.
const DefaultTimeout = 2000 * time.Millisecond

// Emitter is the slice of the connection session the machine uses.
// Presence is best-effort: nothing is emitted while Ready is false.
type Emitter interface {
	Ready() bool
	Emit(chat.Event) error
}

// Machine tracks local and remote typing state. The two sides are
// orthogonal: both may hold at once. State is ephemeral and reset on
// every active-conversation switch.
type Machine struct {
	emitter Emitter
	timeout time.Duration

	mu            sync.Mutex
	chatID        string
	localTyping   bool
	lastKeystroke time.Time
	timer         *time.Timer
	epoch         uint64 // invalidates timers superseded by a newer keystroke
	remoteTyping  bool

	onRemoteChanged func(bool)
}

// New creates a machine around an emitter. A zero timeout selects
// DefaultTimeout.
func New(emitter Emitter, timeout time.Duration) *Machine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Machine{emitter: emitter, timeout: timeout}
}

// OnRemoteChanged registers the presentation hook for the remote
// typing flag.
func (m *Machine) OnRemoteChanged(f func(bool)) {
	m.onRemoteChanged = f
}

// SetActiveChat resets all typing state for a conversation switch.
func (m *Machine) SetActiveChat(chatID string) {
	m.mu.Lock()
	m.chatID = chatID
	m.localTyping = false
	m.epoch++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	changed := m.remoteTyping
	m.remoteTyping = false
	cb := m.onRemoteChanged
	m.mu.Unlock()

	if changed && cb != nil {
		cb(false)
	}
}

// Keystroke registers local input. Only the Idle to LocallyTyping edge
// emits a typing event; every keystroke restarts the single-flight
// stop timer, so one burst yields exactly one stop event.
func (m *Machine) Keystroke() {
	if !m.emitter.Ready() {
		// Dropping a presence signal is acceptable; dropping a message
		// is not. Skip silently.
		return
	}

	m.mu.Lock()
	if m.chatID == "" {
		m.mu.Unlock()
		return
	}

	m.lastKeystroke = time.Now()
	edge := !m.localTyping
	m.localTyping = true
	chatID := m.chatID

	m.epoch++
	epoch := m.epoch
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.timeout, func() { m.quietElapsed(epoch) })
	m.mu.Unlock()

	if edge {
		m.emitPresence(chat.EventTyping, chatID)
	}
}

// quietElapsed fires when no keystroke arrived for a full timeout.
func (m *Machine) quietElapsed(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || !m.localTyping {
		// A newer keystroke or a chat switch superseded this timer.
		m.mu.Unlock()
		return
	}
	m.localTyping = false
	m.timer = nil
	chatID := m.chatID
	m.mu.Unlock()

	m.emitPresence(chat.EventStopTyping, chatID)
}

// Stop ends the local typing session immediately; used when a message
// is sent.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.localTyping {
		m.mu.Unlock()
		return
	}
	m.localTyping = false
	m.epoch++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	chatID := m.chatID
	m.mu.Unlock()

	m.emitPresence(chat.EventStopTyping, chatID)
}

// HandleEvent mirrors inbound presence events into the remote flag.
// The flag reflects the last event received; a lost stop event leaves
// it set until the next event, which is accepted.
func (m *Machine) HandleEvent(ev chat.Event) {
	switch ev.Name {
	case chat.EventTyping:
		m.setRemote(true)
	case chat.EventStopTyping:
		m.setRemote(false)
	}
}

// LocallyTyping reports whether a local typing session is open.
func (m *Machine) LocallyTyping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localTyping
}

// RemoteTyping reports the remote participant's display flag.
func (m *Machine) RemoteTyping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remoteTyping
}

func (m *Machine) setRemote(v bool) {
	m.mu.Lock()
	if m.remoteTyping == v {
		m.mu.Unlock()
		return
	}
	m.remoteTyping = v
	cb := m.onRemoteChanged
	m.mu.Unlock()

	if cb != nil {
		cb(v)
	}
}

func (m *Machine) emitPresence(name, chatID string) {
	if !m.emitter.Ready() {
		return
	}
	ev, err := chat.NewEvent(name, chatID)
	if err != nil {
		return
	}
	// Best-effort: a presence emit that fails is absorbed.
	_ = m.emitter.Emit(ev)
}
