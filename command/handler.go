package command

import (
	"context"
)

// Handler turns a Request into domain behavior. Handlers may read and
// write the Context, including appending follow-up commands to its Queue,
// and return the (possibly mutated) context.
type Handler interface {
	// Word is matched case-sensitively against the first token.
	Word() string
	// Description is shown by help listings.
	Description() string
	// Internal handlers are hidden from user-facing listings.
	Internal() bool
	// Requires names the integrations that must be registered for Handle
	// to run.
	Requires() []string

	Handle(ctx context.Context, cc *Context, req Request) (*Context, error)
}

// Spec carries handler metadata. Embed it to implement the descriptive
// half of Handler.
type Spec struct {
	Name         string
	Summary      string
	Hidden       bool
	Integrations []string
}

// Word implements Handler.
func (s Spec) Word() string { return s.Name }

// Description implements Handler.
func (s Spec) Description() string { return s.Summary }

// Internal implements Handler.
func (s Spec) Internal() bool { return s.Hidden }

// Requires implements Handler.
func (s Spec) Requires() []string { return s.Integrations }

// HandlerFunc is the signature of leaf handler behavior.
type HandlerFunc func(ctx context.Context, cc *Context, req Request) (*Context, error)

// Leaf is a Handler backed by a function.
type Leaf struct {
	Spec
	fn HandlerFunc
}

// NewLeaf creates a leaf handler.
func NewLeaf(spec Spec, fn HandlerFunc) *Leaf {
	return &Leaf{Spec: spec, fn: fn}
}

// Handle implements Handler.
func (l *Leaf) Handle(ctx context.Context, cc *Context, req Request) (*Context, error) {
	return l.fn(ctx, cc, req)
}

// Invoke runs h after verifying its required integrations. A missing
// integration fails fast with a MISSING_INTEGRATION error and h is not run.
func Invoke(ctx context.Context, h Handler, cc *Context, req Request) (*Context, error) {
	for _, name := range h.Requires() {
		if !cc.Integrations.Has(name) {
			return cc, missingIntegration(h.Word(), name)
		}
	}
	return h.Handle(ctx, cc, req)
}
