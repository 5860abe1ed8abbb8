package command

import "sync"

// Queue is the per-session FIFO work queue. Commands appended while another
// command is being processed go to the tail, which is how commands expand
// into follow-up commands.
type Queue struct {
	mu    sync.Mutex
	items []string
}

// NewQueue creates a queue holding cmds in order.
func NewQueue(cmds ...string) *Queue {
	q := &Queue{}
	q.Push(cmds...)
	return q
}

// Push appends cmds to the tail in order.
func (q *Queue) Push(cmds ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cmds...)
}

// Pop removes and returns the head.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return head, true
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queued commands, head first.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

// Clear drops every queued command and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Truncate drops commands beyond the first n and returns how many were
// dropped.
func (q *Queue) Truncate(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n >= len(q.items) {
		return 0
	}
	dropped := len(q.items) - n
	clear(q.items[n:])
	q.items = q.items[:n]
	return dropped
}
