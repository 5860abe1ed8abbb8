package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/prompt"
)

// CommandSeparator splits the command list of "prompt add".
const CommandSeparator = ";;"

// NewPrompt creates the "prompt" group.
func NewPrompt() command.Handler {
	requires := []string{command.IntegrationPrompts}
	leaf := func(name, summary string, fn command.HandlerFunc) command.Handler {
		return command.NewLeaf(command.Spec{Name: name, Summary: summary, Integrations: requires}, fn)
	}

	return command.NewGroup(command.Spec{
		Name:         "prompt",
		Summary:      "manage and run stored prompts",
		Integrations: requires,
	},
		leaf("list", "list stored prompts", promptList),
		leaf("show", "show a prompt's commands", promptShow),
		leaf("add", "store a prompt: add <name> <command> [;; <command> ...]", promptAdd),
		leaf("run", "run a prompt: run <name> [key=value ...]", promptRun),
		leaf("delete", "delete a local prompt", promptDelete),
	)
}

func promptStore(cc *command.Context) (prompt.Store, error) {
	return command.Lookup[prompt.Store](cc.Integrations, command.IntegrationPrompts)
}

func promptList(_ context.Context, cc *command.Context, _ command.Request) (*command.Context, error) {
	store, err := promptStore(cc)
	if err != nil {
		return cc, err
	}
	prompts, err := store.List()
	if err != nil {
		return cc, err
	}
	if len(prompts) == 0 {
		cc.Say("no prompts stored")
		return cc, nil
	}

	var b strings.Builder
	for i, p := range prompts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%s] params=%s", p.Name, p.Source, formatParams(p))
		if p.WebhookEnabled {
			b.WriteString(" webhook")
		}
	}
	cc.Say(b.String())

	return cc, nil
}

func formatParams(p *prompt.Prompt) string {
	f, err := p.ParameterFormat()
	switch {
	case err != nil:
		return "invalid"
	case f == nil:
		return "none"
	case f.Unnamed():
		return "<text>"
	default:
		return f.String()
	}
}

func promptShow(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("prompt show", "<name>")
	}
	store, err := promptStore(cc)
	if err != nil {
		return cc, err
	}
	p, err := store.GetByName(req.Args)
	if err != nil {
		return cc, err
	}
	cc.Say(fmt.Sprintf("%s (%s)\n  %s", p.Name, p.ID, strings.Join(p.Commands, "\n  ")))
	return cc, nil
}

func promptAdd(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	sub := req.Sub()
	if sub.Word == "" || sub.Args == "" {
		return cc, command.Usage("prompt add", "<name> <command> [;; <command> ...]")
	}
	store, err := promptStore(cc)
	if err != nil {
		return cc, err
	}

	var cmds []string
	for _, c := range strings.Split(sub.Args, CommandSeparator) {
		if c = strings.TrimSpace(c); c != "" {
			cmds = append(cmds, c)
		}
	}

	p, err := prompt.New(sub.Word, cmds, func(o *prompt.Options) { o.CreatedBy = cc.Username })
	if err != nil {
		return cc, err
	}
	if err := store.Save(p); err != nil {
		return cc, err
	}
	cc.Say(fmt.Sprintf("stored prompt %s (params=%s)", p.Name, formatParams(p)))

	return cc, nil
}

func promptDelete(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("prompt delete", "<name>")
	}
	store, err := promptStore(cc)
	if err != nil {
		return cc, err
	}
	p, err := store.GetByName(req.Args)
	if err != nil {
		return cc, err
	}
	if p.Source != prompt.SourceLocal {
		return cc, core.Errorf(core.ErrCodeInvalidArguments, "prompt %s is defined by the project and cannot be deleted here", p.Name)
	}
	if err := store.Delete(p.ID); err != nil {
		return cc, err
	}
	cc.Say("deleted prompt " + p.Name)
	return cc, nil
}

func promptRun(ctx context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	sub := req.Sub()
	if sub.Word == "" {
		return cc, command.Usage("prompt run", "<name> [key=value ...]")
	}
	store, err := promptStore(cc)
	if err != nil {
		return cc, err
	}
	p, err := store.GetByName(sub.Word)
	if err != nil {
		return cc, err
	}

	params, err := promptParams(p, sub.Args)
	if err != nil {
		return cc, err
	}
	missing, err := p.MissingParams(params)
	if err != nil {
		return cc, err
	}
	for _, name := range missing {
		label := name
		if label == "" {
			label = "input"
		}
		ans, err := cc.Ask(ctx, core.NewInvite(fmt.Sprintf("%s: value for %s?", p.Name, label), ""))
		if err != nil {
			return cc, err
		}
		params[name] = ans.Value
	}

	cmds, err := p.Materialize(params)
	if err != nil {
		return cc, err
	}
	cc.Enqueue(cmds...)
	cc.LogInfo("command.prompt.run", "session", cc.SessionID, "prompt", p.Name, "commands", len(cmds))

	return cc, nil
}

// promptParams reads the run arguments of p. A prompt with a single unnamed
// parameter takes the whole argument text verbatim, "=" included.
func promptParams(p *prompt.Prompt, args string) (map[string]string, error) {
	format, err := p.ParameterFormat()
	if err != nil {
		return nil, err
	}
	if !format.Unnamed() {
		return ParseParams(args), nil
	}

	params := map[string]string{}
	if text := strings.TrimSpace(args); text != "" {
		params[""] = text
	}
	return params, nil
}

// ParseParams reads key=value tokens from args. Everything that is not a
// key=value token is joined into the unnamed parameter.
func ParseParams(args string) map[string]string {
	params := map[string]string{}
	var rest []string
	for _, f := range strings.Fields(args) {
		if k, v, ok := strings.Cut(f, "="); ok && k != "" {
			params[k] = v
			continue
		}
		rest = append(rest, f)
	}
	if len(rest) > 0 {
		params[""] = strings.Join(rest, " ")
	}
	return params
}
