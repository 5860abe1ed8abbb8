package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/cmdmesh/internal/util"
)

// Func is the implementation behind a FunctionTool. Arguments have been
// validated against the tool's schema.
type Func func(tc *Context, args map[string]any) (any, error)

// FunctionTool exposes a Go function to models. It validates arguments
// against its schema before calling the function and reports failures as
// *ToolError:
//
//	VALIDATION_ERROR  arguments do not match the schema
//	EXECUTION_ERROR   the function returned a plain error
//
// A *ToolError returned by the function is forwarded with its own code.
// FunctionTool is immutable and safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
}

// NewFunctionTool creates a FunctionTool. Build parameters with
// util.ObjectSchema or pass a JSON schema map.
func NewFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and runs the function. A cancelled context aborts
// before the function runs.
func (t *FunctionTool) Call(tc *Context, args map[string]any) (any, error) {
	if err := tc.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	tc.LogDebug("tool.call.start", "tool", t.name, "fc_id", tc.FunctionCallID(), "agent", tc.Agent())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		tc.LogWarn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(tc, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			tc.LogWarn("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)
			return nil, toolErr
		}

		tc.LogWarn("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	tc.LogDebug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

var _ Tool = (*FunctionTool)(nil)
