package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hupe1980/cmdmesh/core"
)

// Source tells where a prompt is defined. It never changes after creation.
type Source string

const (
	SourceLocal   Source = "local"
	SourceProject Source = "project"
)

// Prompt is a stored command template.
type Prompt struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Commands       []string `json:"commands" yaml:"commands"`
	WebhookEnabled bool     `json:"webhook_enabled" yaml:"webhook"`
	Source         Source   `json:"source" yaml:"source"`
	CreatedBy      string   `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// Options configures New.
type Options struct {
	ID             string
	WebhookEnabled bool
	Source         Source
	CreatedBy      string
}

// New creates a validated prompt.
func New(name string, commands []string, optFns ...func(o *Options)) (*Prompt, error) {
	opts := Options{Source: SourceLocal}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = core.NewID()
	}

	p := &Prompt{
		ID:             opts.ID,
		Name:           name,
		Commands:       append([]string(nil), commands...),
		WebhookEnabled: opts.WebhookEnabled,
		Source:         opts.Source,
		CreatedBy:      opts.CreatedBy,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Clone returns a deep copy.
func (p *Prompt) Clone() *Prompt {
	c := *p
	c.Commands = append([]string(nil), p.Commands...)
	return &c
}

// Validate checks name, commands, source and placeholder consistency.
func (p *Prompt) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return core.Errorf(core.ErrCodeInvalidPrompt, "prompt name must not be empty")
	}
	if strings.ContainsAny(p.Name, " \t\n") {
		return core.Errorf(core.ErrCodeInvalidPrompt, "prompt name %q must not contain whitespace", p.Name)
	}
	if len(p.Commands) == 0 {
		return core.Errorf(core.ErrCodeInvalidPrompt, "prompt %s has no commands", p.Name)
	}
	if p.Source != SourceLocal && p.Source != SourceProject {
		return core.Errorf(core.ErrCodeInvalidPrompt, "prompt %s: unknown source %q", p.Name, p.Source)
	}
	_, err := p.ParameterFormat()
	return err
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.-]*)?\s*\}\}`)

// ParameterFormat describes the parameters a prompt takes. A nil format
// means the prompt takes no parameters. An empty Names list is a single
// unnamed parameter; otherwise Names lists the named parameters in
// first-seen order.
type ParameterFormat struct {
	Names []string
}

// Unnamed reports whether the prompt takes a single unnamed parameter.
func (f *ParameterFormat) Unnamed() bool { return f != nil && len(f.Names) == 0 }

// String renders "" for the unnamed form and a comma separated list
// otherwise.
func (f *ParameterFormat) String() string {
	if f == nil {
		return "<none>"
	}
	return strings.Join(f.Names, ",")
}

// ParameterFormat derives the parameter format from the placeholders.
// Mixing named and unnamed placeholders is invalid.
func (p *Prompt) ParameterFormat() (*ParameterFormat, error) {
	var (
		names   []string
		seen    = map[string]bool{}
		found   bool
		unnamed bool
	)

	for _, cmd := range p.Commands {
		for _, m := range placeholder.FindAllStringSubmatch(cmd, -1) {
			found = true
			if m[1] == "" {
				unnamed = true
				continue
			}
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}

	switch {
	case !found:
		return nil, nil
	case unnamed && len(names) > 0:
		return nil, core.Errorf(core.ErrCodeInvalidPrompt, "prompt %s mixes named and unnamed placeholders", p.Name)
	case unnamed:
		return &ParameterFormat{}, nil
	default:
		return &ParameterFormat{Names: names}, nil
	}
}

// MissingParams returns the parameters not present in params, in format
// order. The unnamed parameter is reported as "".
func (p *Prompt) MissingParams(params map[string]string) ([]string, error) {
	format, err := p.ParameterFormat()
	if err != nil || format == nil {
		return nil, err
	}

	if format.Unnamed() {
		if _, ok := params[""]; !ok {
			return []string{""}, nil
		}
		return nil, nil
	}

	var missing []string
	for _, n := range format.Names {
		if _, ok := params[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

// Materialize substitutes params into the commands. A missing parameter is
// an error; extra parameters are ignored.
func (p *Prompt) Materialize(params map[string]string) ([]string, error) {
	missing, err := p.MissingParams(params)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, core.Errorf(core.ErrCodeInvalidArguments, "prompt %s: missing parameters %s", p.Name, quoteAll(missing))
	}

	out := make([]string, len(p.Commands))
	for i, cmd := range p.Commands {
		out[i] = placeholder.ReplaceAllStringFunc(cmd, func(tok string) string {
			m := placeholder.FindStringSubmatch(tok)
			return params[m[1]]
		})
	}

	return out, nil
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}
