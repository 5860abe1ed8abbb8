package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/cmdmesh/internal/util"
)

// NewRedirectTool creates a tool that hands the conversation to another agent
// by enqueuing an "@agent query" command. The redirect runs after the current
// command completes, never nested inside it.
func NewRedirectTool(enqueue func(line string)) Tool {
	return NewFunctionTool(
		"redirect_to_agent",
		"Hand the request over to another agent. The agent runs after the current answer is complete.",
		util.ObjectSchema(
			util.String("agent", "Name of the agent to hand over to", true),
			util.String("query", "The request for the target agent", true),
		),
		func(tc *Context, args map[string]any) (any, error) {
			name, _ := args["agent"].(string)
			query, _ := args["query"].(string)

			name = strings.TrimPrefix(strings.TrimSpace(name), "@")
			if name == "" || strings.ContainsAny(name, " \t\n") {
				return nil, NewToolError("redirect_to_agent", fmt.Sprintf("invalid agent name %q", name), CodeValidation)
			}
			if name == tc.Agent() {
				return nil, NewToolError("redirect_to_agent", "cannot redirect to the calling agent", CodeValidation)
			}

			line := "@" + name + " " + strings.TrimSpace(query)
			enqueue(line)

			tc.LogInfo("tool.redirect.enqueued", "from", tc.Agent(), "to", name)

			return map[string]any{"queued": line}, nil
		},
	)
}
