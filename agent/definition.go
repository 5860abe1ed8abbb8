package agent

import (
	"strings"

	"github.com/hupe1980/cmdmesh/core"
)

// Definition describes an agent. Registered definitions act as templates;
// every session-scoped Agent works on its own copy, so tier changes stay
// local to the session.
type Definition struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Instructions string `yaml:"instructions"`
	// Tools names the tool factory constructors the agent is built with.
	Tools []string `yaml:"tools"`
	Tier  Tier     `yaml:"tier"`
}

// Clone returns a deep copy.
func (d Definition) Clone() Definition {
	c := d
	c.Tools = append([]string(nil), d.Tools...)
	return c
}

// Validate checks that the definition can be addressed as "@name".
func (d Definition) Validate() error {
	if d.Name == "" {
		return core.Errorf(core.ErrCodeInvalidArguments, "agent name must not be empty")
	}
	if strings.ContainsAny(d.Name, " \t\n@") {
		return core.Errorf(core.ErrCodeInvalidArguments, "agent name %q must not contain whitespace or '@'", d.Name)
	}
	if d.Tier != "" && !d.Tier.Valid() {
		return core.Errorf(core.ErrCodeInvalidArguments, "agent %s: unknown tier %q", d.Name, d.Tier)
	}
	return nil
}
