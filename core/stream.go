package core

import (
	"context"
	"sync"
)

// Stream is a push-based event stream with explicit terminal states. It
// fans every published event out to any number of subscribers. Each
// subscriber owns an unbounded queue drained by its own goroutine, so a slow
// subscriber never blocks the publisher or its peers.
//
// A Stream terminates exactly once, either by Close (completion) or by Fail
// (error). Subscribers that attach late first receive the retained history,
// which is everything unless StreamOptions.HistoryLimit says otherwise.
type Stream struct {
	opts StreamOptions

	mu      sync.Mutex
	history []Event
	subs    map[*Subscription]struct{}
	closed  bool
	err     error
	done    chan struct{}
}

// StreamOptions configures a Stream.
type StreamOptions struct {
	// HistoryLimit bounds the events kept for History and late subscribers.
	// Zero keeps every event, a negative value keeps none. Events dropped
	// from history still reach every attached subscriber.
	HistoryLimit int
}

// NewStream creates an open stream.
func NewStream(optFns ...func(o *StreamOptions)) *Stream {
	opts := StreamOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Stream{
		opts: opts,
		subs: make(map[*Subscription]struct{}),
		done: make(chan struct{}),
	}
}

// record appends ev to the history, evicting the oldest events beyond the
// limit. Callers hold s.mu.
func (s *Stream) record(ev Event) {
	limit := s.opts.HistoryLimit
	if limit < 0 {
		return
	}
	if limit > 0 && len(s.history) >= limit {
		n := copy(s.history, s.history[len(s.history)-limit+1:])
		clear(s.history[n:])
		s.history = s.history[:n]
	}
	s.history = append(s.history, ev)
}

// Publish appends ev to the stream. It never blocks on subscribers.
func (s *Stream) Publish(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}

	s.record(ev)
	for sub := range s.subs {
		sub.push(ev)
	}

	return nil
}

// Close terminates the stream successfully. Further calls are no-ops.
func (s *Stream) Close() { s.terminate(nil) }

// Fail terminates the stream with err. An ErrorEvent describing err is
// published before the terminal state so event-only consumers observe it.
// A nil err behaves like Close.
func (s *Stream) Fail(err error) { s.terminate(err) }

func (s *Stream) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if err != nil {
		ev := NewErrorEvent(err)
		s.record(ev)
		for sub := range s.subs {
			sub.push(ev)
		}
	}

	s.closed = true
	s.err = err
	for sub := range s.subs {
		sub.finish(err)
	}
	s.subs = nil
	close(s.done)
}

// Done is closed once the stream reached a terminal state.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the terminal error, or nil while open or after Close.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the stream terminates or ctx is done.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

// History returns a copy of the retained events.
func (s *Stream) History() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.history))
	copy(out, s.history)
	return out
}

// Subscribe attaches a new subscriber. The subscription ends when the stream
// terminates and all queued events were delivered, or when ctx is done.
// Callers must drain Events or cancel ctx.
func (s *Stream) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		stream: s,
		out:    make(chan Event),
		notify: make(chan struct{}, 1),
	}

	s.mu.Lock()
	sub.queue = append(sub.queue, s.history...)
	if s.closed {
		sub.terminal = true
		sub.err = s.err
	} else {
		s.subs[sub] = struct{}{}
	}
	s.mu.Unlock()

	go sub.pump(ctx)

	return sub
}

// Collect subscribes and gathers every event until the stream terminates.
// It returns the terminal error of the stream or ctx.Err().
func (s *Stream) Collect(ctx context.Context) ([]Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := s.Subscribe(ctx)

	var events []Event
	for ev := range sub.Events() {
		events = append(events, ev)
	}

	return events, sub.Err()
}

func (s *Stream) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

// Subscription is one consumer's view of a Stream.
type Subscription struct {
	stream *Stream

	mu       sync.Mutex
	queue    []Event
	terminal bool
	err      error

	out    chan Event
	notify chan struct{}
}

// Events delivers the stream's events in publish order. The channel closes
// after the terminal state or when the subscription's context ends.
func (sub *Subscription) Events() <-chan Event { return sub.out }

// Err reports why the subscription ended: the stream's failure, the
// subscriber context's error, or nil on successful completion. Only
// meaningful after Events is closed.
func (sub *Subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

func (sub *Subscription) push(ev Event) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()
	sub.signal()
}

func (sub *Subscription) finish(err error) {
	sub.mu.Lock()
	sub.terminal = true
	sub.err = err
	sub.mu.Unlock()
	sub.signal()
}

func (sub *Subscription) signal() {
	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *Subscription) detach(err error) {
	sub.stream.unsubscribe(sub)
	sub.mu.Lock()
	if !sub.terminal {
		sub.err = err
	}
	sub.queue = nil
	sub.mu.Unlock()
}

func (sub *Subscription) pump(ctx context.Context) {
	defer close(sub.out)

	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			terminal := sub.terminal
			sub.mu.Unlock()

			if terminal {
				return
			}

			select {
			case <-sub.notify:
				continue
			case <-ctx.Done():
				sub.detach(ctx.Err())
				return
			}
		}

		ev := sub.queue[0]
		sub.queue[0] = nil
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- ev:
		case <-ctx.Done():
			sub.detach(ctx.Err())
			return
		}
	}
}
