package interaction

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// ErrNoAnswer is returned when an unattended interaction cannot answer a
// question.
var ErrNoAnswer = errors.New("no answer available for unattended session")

// Scripted answers questions from a fixed list of values, in order, for
// scheduled and one-shot sessions where nobody is at the keyboard. When the
// list is exhausted the question's default is used; a question without a
// default fails with ErrNoAnswer. Every event is recorded and forwarded to
// the optional Sink.
type Scripted struct {
	*Recorder

	mu      sync.Mutex
	answers []string

	// Sink receives a copy of every event (e.g. a logger bridge).
	Sink core.Interaction
}

var _ core.Interaction = (*Scripted)(nil)

// NewScripted creates a scripted interaction.
func NewScripted(answers ...string) *Scripted {
	s := &Scripted{Recorder: NewRecorder(), answers: answers}
	s.Recorder.Responder = s.next
	return s
}

// Notify records and forwards ev.
func (s *Scripted) Notify(ev core.Event) {
	s.Recorder.Notify(ev)
	if s.Sink != nil {
		s.Sink.Notify(ev)
	}
}

// Ask answers q from the script.
func (s *Scripted) Ask(ctx context.Context, q core.Question) (core.Answer, error) {
	if s.Sink != nil {
		s.Sink.Notify(q)
	}
	return s.Recorder.Ask(ctx, q)
}

func (s *Scripted) next(q core.Question) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.answers) > 0 {
		v := s.answers[0]
		s.answers = s.answers[1:]
		return v, nil
	}

	switch qq := q.(type) {
	case core.Invite:
		if qq.Default != "" {
			return qq.Default, nil
		}
	case core.Choice:
		if qq.Default != "" {
			return qq.Default, nil
		}
	}

	return "", ErrNoAnswer
}
