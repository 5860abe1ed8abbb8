package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/tool"
)

const memorySearchLimit = 5

// NewMemory creates the "memory" group.
func NewMemory() command.Handler {
	requires := []string{command.IntegrationMemory}

	return command.NewGroup(command.Spec{
		Name:         "memory",
		Summary:      "store and search project memory",
		Integrations: requires,
	},
		command.NewLeaf(command.Spec{Name: "add", Summary: "remember a note", Integrations: requires}, memoryAdd),
		command.NewLeaf(command.Spec{Name: "search", Summary: "search notes", Integrations: requires}, memorySearch),
		command.NewLeaf(command.Spec{Name: "curate", Summary: "ask the curator agent to organize a topic", Integrations: requires}, memoryCurate),
	)
}

func memoryScope(cc *command.Context) string {
	return tool.MemoryScope(tool.Scope{SessionID: cc.SessionID, Project: cc.Project})
}

func memoryAdd(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("memory add", "<text>")
	}
	store, err := command.Lookup[core.MemoryStore](cc.Integrations, command.IntegrationMemory)
	if err != nil {
		return cc, err
	}

	id, err := store.Store(memoryScope(cc), req.Args, map[string]any{"source": "command", "username": cc.Username})
	if err != nil {
		return cc, err
	}
	cc.Say("remembered " + id)

	return cc, nil
}

func memorySearch(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	store, err := command.Lookup[core.MemoryStore](cc.Integrations, command.IntegrationMemory)
	if err != nil {
		return cc, err
	}

	results, err := store.Search(memoryScope(cc), req.Args, memorySearchLimit)
	if err != nil {
		return cc, err
	}
	if len(results) == 0 {
		cc.Say("no memories match")
		return cc, nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%.2f) %s", r.ID, r.Score, r.Content)
	}
	cc.Say(b.String())

	return cc, nil
}

func memoryCurate(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("memory curate", "<topic>")
	}
	cc.Enqueue(command.AgentPrefix + CuratorAgent + " " + req.Args)
	return cc, nil
}
