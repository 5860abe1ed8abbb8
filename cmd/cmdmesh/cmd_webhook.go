package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/cmdmesh/core"
)

// webhookCmd triggers a prompt the way an inbound webhook would
var webhookCmd = &cobra.Command{
	Use:   "webhook <prompt> [params-json|-]",
	Short: "Trigger a webhook-enabled prompt",
	Long: `Launches the prompt in a one-shot session with parameters taken from a
JSON object such as {"who":"bob"}. "-" reads the JSON from stdin. The
prompt is looked up by id first, then by name.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWebhook,
}

func runWebhook(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mesh, err := newMesh(nil, newConsole(cmd))
	if err != nil {
		return err
	}
	defer mesh.Close()

	if _, err := mesh.ReloadPrompts(); err != nil {
		return err
	}

	id := args[0]
	if _, err := mesh.Prompts().Get(id); core.CodeOf(err) == core.ErrCodeNotFound {
		p, err := mesh.Prompts().GetByName(id)
		if err != nil {
			return err
		}
		id = p.ID
	}

	var body []byte
	if len(args) == 2 {
		if args[1] == "-" {
			if body, err = io.ReadAll(cmd.InOrStdin()); err != nil {
				return err
			}
		} else {
			body = []byte(args[1])
		}
	}

	return mesh.Webhook().Trigger(ctx, id, body)
}
