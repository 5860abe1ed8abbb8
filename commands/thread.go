package commands

import (
	"context"
	"fmt"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/thread"
)

// NewThread creates the "thread" group.
func NewThread() command.Handler {
	return command.NewGroup(command.Spec{
		Name:    "thread",
		Summary: "inspect the conversation",
	},
		command.NewLeaf(command.Spec{Name: "show", Summary: "show context window statistics"}, threadShow),
	)
}

func threadShow(_ context.Context, cc *command.Context, _ command.Request) (*command.Context, error) {
	msgs := cc.Thread.Messages()
	w := thread.Partition(msgs, cc.WindowBudget)

	budget := "unbounded"
	if cc.WindowBudget != nil {
		budget = fmt.Sprintf("%d", *cc.WindowBudget)
	}
	cc.Say(fmt.Sprintf("thread %s: %d messages, %d chars, budget %s, %d in window, %d overflow",
		cc.Thread.ID(), len(msgs), thread.Length(msgs), budget, len(w.InWindow), len(w.Overflow)))

	return cc, nil
}
