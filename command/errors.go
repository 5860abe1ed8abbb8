package command

import (
	"fmt"
	"strings"

	"github.com/hupe1980/cmdmesh/core"
)

func unknownCommand(group, word string, known []string) *core.Error {
	where := "command"
	if group != "" {
		where = fmt.Sprintf("%s subcommand", group)
	}
	hint := ""
	if len(known) > 0 {
		hint = fmt.Sprintf(" (expected one of: %s)", strings.Join(known, ", "))
	}
	if word == "" {
		return core.Errorf(core.ErrCodeUnknownCommand, "missing %s%s", where, hint)
	}
	return core.Errorf(core.ErrCodeUnknownCommand, "unrecognized %s %q%s", where, word, hint)
}

func missingIntegration(handler, integration string) *core.Error {
	return core.Errorf(core.ErrCodeMissingIntegration, "%q requires the %q integration, which is not configured", handler, integration)
}

// Usage builds an INVALID_ARGUMENTS error for a handler.
func Usage(handler, usage string) *core.Error {
	return core.Errorf(core.ErrCodeInvalidArguments, "usage: %s %s", handler, usage)
}

// IsDispatchError reports whether err is a non-fatal routing failure:
// unknown command or missing integration.
func IsDispatchError(err error) bool {
	switch core.CodeOf(err) {
	case core.ErrCodeUnknownCommand, core.ErrCodeMissingIntegration:
		return true
	}
	return false
}
