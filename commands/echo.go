package commands

import (
	"context"

	"github.com/hupe1980/cmdmesh/command"
)

// NewEcho creates the internal "_echo" handler used by prompts and tests.
func NewEcho() command.Handler {
	return command.NewLeaf(command.Spec{
		Name:    "_echo",
		Summary: "emit text",
		Hidden:  true,
	}, func(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
		cc.Say(req.Args)
		return cc, nil
	})
}
