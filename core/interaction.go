package core

import "context"

// Interaction is the consumer side of a session: the terminal, a remote UI
// bridge, or an automated caller. Implementations must be safe for use by
// the session goroutine and any agent run goroutines it spawned.
type Interaction interface {
	// Notify delivers a non-question event. It must not block for long.
	Notify(ev Event)

	// Ask emits q and suspends the caller until the matching Answer arrives
	// or ctx is done. Only the calling session is blocked.
	Ask(ctx context.Context, q Question) (Answer, error)
}

// Forward subscribes to s and relays every event to ix until the stream
// terminates. It returns the stream's terminal error.
func Forward(ctx context.Context, s *Stream, ix Interaction) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := s.Subscribe(ctx)
	for ev := range sub.Events() {
		ix.Notify(ev)
	}

	return sub.Err()
}
