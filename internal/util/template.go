package util

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"default": func(def, val any) any {
		if val == nil || val == "" {
			return def
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
}

// parsed templates keyed by source text; instructions are rendered before
// every model call and rarely change.
var templateCache sync.Map

// RenderTemplate executes text as a text/template over data. Text without
// actions is returned unchanged. Missing keys render as empty strings.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parseTemplate(text)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	return strings.ReplaceAll(sb.String(), "<no value>", ""), nil
}

func parseTemplate(text string) (*template.Template, error) {
	if cached, ok := templateCache.Load(text); ok {
		return cached.(*template.Template), nil
	}

	tmpl, err := template.New("instructions").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	templateCache.Store(text, tmpl)

	return tmpl, nil
}
