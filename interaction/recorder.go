package interaction

import (
	"context"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Recorder is an Interaction that keeps every notified event. Questions are
// recorded and answered by the optional Responder; without one Ask fails.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event

	// Responder produces the answer value for a question.
	Responder func(q core.Question) (string, error)
}

var _ core.Interaction = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Notify records ev.
func (r *Recorder) Notify(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Ask records q and answers it through Responder.
func (r *Recorder) Ask(ctx context.Context, q core.Question) (core.Answer, error) {
	r.Notify(q)
	if err := ctx.Err(); err != nil {
		return core.Answer{}, err
	}
	if r.Responder == nil {
		return core.Answer{}, ErrNoAnswer
	}
	v, err := r.Responder(q)
	if err != nil {
		return core.Answer{}, err
	}
	return q.BuildAnswer(v), nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of kind k.
func (r *Recorder) OfKind(k core.Kind) []core.Event {
	var out []core.Event
	for _, ev := range r.Events() {
		if ev.Kind() == k {
			out = append(out, ev)
		}
	}
	return out
}

// Texts returns the text of every non-partial Text event.
func (r *Recorder) Texts() []string {
	var out []string
	for _, ev := range r.OfKind(core.KindText) {
		if t := ev.(core.Text); !t.Partial {
			out = append(out, t.Text)
		}
	}
	return out
}

// Errors returns every ErrorEvent.
func (r *Recorder) Errors() []core.ErrorEvent {
	var out []core.ErrorEvent
	for _, ev := range r.OfKind(core.KindError) {
		out = append(out, ev.(core.ErrorEvent))
	}
	return out
}
