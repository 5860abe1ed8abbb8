package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/cmdmesh/command"
)

// NewHelp lists the visible commands of tree. "help <word>" lists the
// subcommands of a group.
func NewHelp(tree *command.Tree) command.Handler {
	return command.NewLeaf(command.Spec{
		Name:    "help",
		Summary: "list available commands",
	}, func(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
		children := tree.Children()
		title := "commands:"

		if word := strings.TrimSpace(req.Args); word != "" {
			h, ok := tree.Find(word)
			if !ok {
				return cc, command.Usage("help", "[command]")
			}
			g, ok := h.(*command.Group)
			if !ok {
				cc.Say(fmt.Sprintf("%s - %s", h.Word(), h.Description()))
				return cc, nil
			}
			children = g.Children()
			title = word + " subcommands:"
		}

		var b strings.Builder
		b.WriteString(title)
		for _, h := range children {
			if h.Internal() {
				continue
			}
			fmt.Fprintf(&b, "\n  %-10s %s", h.Word(), h.Description())
		}
		if req.Args == "" {
			b.WriteString("\n  @<agent>   send a query to an agent (prefix + or - to switch tier)")
		}
		cc.Say(b.String())

		return cc, nil
	})
}
