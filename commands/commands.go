package commands

import (
	"sort"

	"github.com/hupe1980/cmdmesh/command"
)

// Integration names used by the built-ins beyond those in package command.
const (
	IntegrationSchedulers = "schedulers"
	IntegrationClock      = "clock"
)

// CuratorAgent is the agent that "memory curate" hands topics to.
const CuratorAgent = "curator"

// NewTree assembles the built-in handlers. Extra handlers are appended after
// the built-ins; on duplicate words the built-in wins.
func NewTree(extra ...command.Handler) *command.Tree {
	tree := command.NewTree()
	tree.Add(
		NewHelp(tree),
		NewLoad(),
		NewMemory(),
		NewAsk(),
		NewPrompt(),
		NewSchedule(),
		NewThread(),
		NewEcho(),
	)
	tree.Add(extra...)
	tree.WithAgentRoute(NewAgentRoute())
	return tree
}

// Words lists the visible top-level words of tree alphabetically.
func Words(tree *command.Tree) []string {
	var out []string
	for _, h := range tree.Children() {
		if !h.Internal() {
			out = append(out, h.Word())
		}
	}
	sort.Strings(out)
	return out
}
