package agent

import (
	"github.com/hupe1980/cmdmesh/internal/util"
)

// DefaultInstructions is used when a definition carries none.
const DefaultInstructions = "You are {{.agent}}, a helpful AI assistant."

// InstructionVars are the values available to instruction templates as
// {{.project}}, {{.username}}, {{.agent}}, {{.session}} and {{.tier}}.
type InstructionVars struct {
	Project  string
	Username string
	Agent    string
	Session  string
	Tier     Tier
}

// Map returns the template data.
func (v InstructionVars) Map() map[string]any {
	return map[string]any{
		"project":  v.Project,
		"username": v.Username,
		"agent":    v.Agent,
		"session":  v.Session,
		"tier":     string(v.Tier),
	}
}

// Resolve renders instructions as a Go text/template.
func Resolve(instructions string, vars InstructionVars) (string, error) {
	if instructions == "" {
		instructions = DefaultInstructions
	}
	return util.RenderTemplate(instructions, vars.Map())
}
