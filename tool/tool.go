// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities (file reads, memory lookups, redirects) with
// schema validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/internal/util"
	"github.com/hupe1980/cmdmesh/logging"
)

// Tool is a capability a model can invoke through a function call.
//
// Tools receive a *Context carrying the run's context.Context, the id of the
// model's function call and a logger. Session-specific capabilities (queue,
// memory scope, workspace) are bound when a Factory constructs the tool.
// Tools are called concurrently when a model requests several at once.
type Tool interface {
	// Name is the function name exposed to models (snake_case).
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters is the JSON schema of the argument object.
	Parameters() map[string]any

	// Call executes the tool with arguments decoded from the model's JSON.
	Call(toolCtx *Context, args map[string]any) (any, error)
}

// Context is handed to Tool.Call. It embeds the run's context.Context so
// tools can honour cancellation.
type Context struct {
	context.Context
	core.LoggerAdapter

	callID string
	agent  string
}

// NewContext creates a tool context for one function call.
func NewContext(ctx context.Context, callID, agent string, logger logging.Logger) *Context {
	return &Context{
		Context:       ctx,
		LoggerAdapter: core.NewLoggerAdapter(logger),
		callID:        callID,
		agent:         agent,
	}
}

// FunctionCallID returns the id of the model's function call.
func (c *Context) FunctionCallID() string { return c.callID }

// Agent returns the name of the calling agent.
func (c *Context) Agent() string { return c.agent }

// Definition describes a tool to a model provider.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Describe returns the provider-facing definition of t.
func Describe(t Tool) Definition {
	return Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
}

// ValidationError reports the argument that failed schema validation.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "TOOL_NOT_FOUND"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
