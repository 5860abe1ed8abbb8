package commands

import (
	"context"
	"fmt"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
)

// NewAsk creates "ask", which sends its text to the default agent.
func NewAsk() command.Handler {
	return command.NewLeaf(command.Spec{
		Name:    "ask",
		Summary: "send a query to the default agent",
	}, func(ctx context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
		if req.Args == "" {
			return cc, command.Usage("ask", "<text>")
		}
		if cc.Agents == nil || cc.Agents.Default() == "" {
			return cc, core.Errorf(core.ErrCodeMissingIntegration, "no agents are configured")
		}
		return cc, runAgent(ctx, cc, cc.Agents.Default(), req.Args)
	})
}

// NewAgentRoute creates the handler for "@name ..." commands. An unknown
// name is resolved by asking the user to pick a registered agent.
func NewAgentRoute() command.Handler {
	return command.NewLeaf(command.Spec{
		Name:    command.AgentPrefix,
		Summary: "send a query to a named agent",
		Hidden:  true,
	}, func(ctx context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
		name, ok := command.AgentName(req.Word)
		if !ok {
			return cc, command.Usage("@<agent>", "<text>")
		}
		if cc.Agents == nil || len(cc.Agents.Names()) == 0 {
			return cc, core.Errorf(core.ErrCodeMissingIntegration, "no agents are configured")
		}

		if !cc.Agents.Has(name) {
			q := core.NewChoice(fmt.Sprintf("Unknown agent @%s. Which agent should handle this?", name), cc.Agents.Names(), cc.Agents.Default())
			ans, err := cc.Ask(ctx, q)
			if err != nil {
				return cc, err
			}
			if !q.Valid(ans.Value) {
				return cc, core.Errorf(core.ErrCodeInvalidArguments, "unknown agent %q", ans.Value)
			}
			name = ans.Value
		}

		return cc, runAgent(ctx, cc, name, req.Args)
	})
}

// runAgent starts name and forwards its events until the run terminates.
// A failed run has already published its error event, so only the
// session's own cancellation is returned.
func runAgent(ctx context.Context, cc *command.Context, name, text string) error {
	stream, err := cc.Agents.Run(ctx, name, text, cc.Thread)
	if err != nil {
		return err
	}

	sub := stream.Subscribe(ctx)
	for ev := range sub.Events() {
		cc.Interaction.Notify(ev)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sub.Err(); err != nil {
		cc.LogWarn("command.agent.failed", "session", cc.SessionID, "agent", name, "code", core.CodeOf(err), "error", err.Error())
	}
	return nil
}
