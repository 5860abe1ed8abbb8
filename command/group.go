package command

import (
	"context"
	"strings"
)

// Group is a composite handler. It matches the first token of its
// arguments against its children in order and forwards the remainder to
// the first child whose word matches.
type Group struct {
	Spec
	children []Handler
}

// NewGroup creates a composite handler.
func NewGroup(spec Spec, children ...Handler) *Group {
	return &Group{Spec: spec, children: children}
}

// Add appends children. Earlier children win on duplicate words.
func (g *Group) Add(children ...Handler) *Group {
	g.children = append(g.children, children...)
	return g
}

// Children returns the child handlers in order.
func (g *Group) Children() []Handler {
	out := make([]Handler, len(g.children))
	copy(out, g.children)
	return out
}

// Find returns the first child whose word equals word.
func (g *Group) Find(word string) (Handler, bool) {
	for _, c := range g.children {
		if c.Word() == word {
			return c, true
		}
	}
	return nil, false
}

// Handle strips the group's own word (already done by the caller) and
// routes the next token.
func (g *Group) Handle(ctx context.Context, cc *Context, req Request) (*Context, error) {
	return g.route(ctx, cc, req.Sub())
}

func (g *Group) route(ctx context.Context, cc *Context, req Request) (*Context, error) {
	if req.Word == "" {
		return cc, unknownCommand(g.path(), "", g.words())
	}
	child, ok := g.Find(req.Word)
	if !ok {
		return cc, unknownCommand(g.path(), req.Word, g.words())
	}
	return Invoke(ctx, child, cc, req)
}

func (g *Group) path() string { return g.Name }

func (g *Group) words() []string {
	var out []string
	for _, c := range g.children {
		if !c.Internal() {
			out = append(out, c.Word())
		}
	}
	return out
}

// Tree is the root of the dispatch hierarchy. Besides its children it may
// carry an agent route that receives every "@name ..." command.
type Tree struct {
	*Group
	agentRoute Handler
}

// NewTree creates a dispatch root.
func NewTree(children ...Handler) *Tree {
	return &Tree{Group: NewGroup(Spec{}, children...)}
}

// WithAgentRoute installs the handler for "@name" commands.
func (t *Tree) WithAgentRoute(h Handler) *Tree {
	t.agentRoute = h
	return t
}

// Dispatch resolves line to a handler and runs it. Blank lines are no-ops.
func (t *Tree) Dispatch(ctx context.Context, cc *Context, line string) (*Context, error) {
	req := ParseRequest(line)
	if req.Word == "" {
		return cc, nil
	}
	if strings.HasPrefix(req.Word, AgentPrefix) && t.agentRoute != nil {
		return Invoke(ctx, t.agentRoute, cc, req)
	}
	return t.route(ctx, cc, req)
}

// AgentPrefix marks a command routed to a named agent.
const AgentPrefix = "@"

// AgentName extracts the agent name from an "@name" word.
func AgentName(word string) (string, bool) {
	if !strings.HasPrefix(word, AgentPrefix) || len(word) == len(AgentPrefix) {
		return "", false
	}
	return strings.TrimPrefix(word, AgentPrefix), true
}
