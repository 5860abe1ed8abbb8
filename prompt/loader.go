package prompt

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/cmdmesh/core"
)

// fileSpec is the on-disk layout of a project prompt.
type fileSpec struct {
	Name     string   `yaml:"name"`
	Commands []string `yaml:"commands"`
	Webhook  bool     `yaml:"webhook"`
}

// ProjectID returns the stable id of the project prompt named name.
func ProjectID(name string) string { return "project:" + name }

// LoadDir reads the project prompts stored as *.yaml / *.yml files in dir.
// A file without a name uses its base name. Entries are returned in
// directory order.
func LoadDir(fs afero.Fs, dir string) ([]*Prompt, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	var prompts []*Prompt
	for _, e := range entries {
		if e.IsDir() || !isPromptFile(e.Name()) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, err
		}

		var spec fileSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, core.NewError(core.ErrCodeInvalidPrompt, "parse "+path, err)
		}
		if spec.Name == "" {
			spec.Name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}

		p, err := New(spec.Name, spec.Commands, func(o *Options) {
			o.ID = ProjectID(spec.Name)
			o.Source = SourceProject
			o.WebhookEnabled = spec.Webhook
		})
		if err != nil {
			return nil, core.NewError(core.ErrCodeInvalidPrompt, path, err)
		}
		prompts = append(prompts, p)
	}

	return prompts, nil
}

// Sync replaces the project prompts in store with prompts. Local prompts
// are left untouched.
func Sync(store Store, prompts []*Prompt) error {
	keep := make(map[string]bool, len(prompts))
	for _, p := range prompts {
		keep[p.ID] = true
		if err := store.Save(p); err != nil {
			return err
		}
	}

	existing, err := store.List()
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.Source == SourceProject && !keep[p.ID] {
			if err := store.Delete(p.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

// SaveFile writes p to dir as <name>.yaml.
func SaveFile(fs afero.Fs, dir string, p *Prompt) error {
	data, err := yaml.Marshal(fileSpec{Name: p.Name, Commands: p.Commands, Webhook: p.WebhookEnabled})
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, filepath.Join(dir, p.Name+".yaml"), data, 0o644)
}

func isPromptFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
