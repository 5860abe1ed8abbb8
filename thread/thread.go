package thread

import (
	"sync"
)

// Thread is the append-only conversation log of one session. Messages are
// never reordered or mutated after insertion. A Thread is safe for
// concurrent use, although a session only ever has one writer at a time.
type Thread struct {
	id       string
	mu       sync.RWMutex
	messages []Message
}

// New creates an empty thread.
func New(id string) *Thread {
	return &Thread{id: id}
}

// ID returns the thread identifier (the owning session id).
func (t *Thread) ID() string { return t.id }

// Append adds messages to the end of the thread in order.
func (t *Thread) Append(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
}

// Messages returns a copy of the full history.
func (t *Thread) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clone(t.messages)
}

// Len returns the number of messages.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the newest message.
func (t *Thread) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Window partitions the current history against budget. It is recomputed
// on every call.
func (t *Thread) Window(budget *int) Window {
	return Partition(t.Messages(), budget)
}

// Overflow returns the messages currently outside the window for budget.
func (t *Thread) Overflow(budget *int) []Message {
	return t.Window(budget).Overflow
}

// Clone returns an independent copy of the thread.
func (t *Thread) Clone() *Thread {
	return &Thread{id: t.id, messages: t.Messages()}
}
