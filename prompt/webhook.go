package prompt

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
)

// KindOneshot is the session kind of webhook launches.
const KindOneshot = "oneshot"

// Webhook launches webhook-enabled prompts from a JSON payload.
type Webhook struct {
	core.LoggerAdapter

	store    Store
	launcher Launcher
	project  string
	username string
}

// NewWebhook creates a webhook trigger. Launches run on behalf of username
// within project.
func NewWebhook(store Store, launcher Launcher, project, username string, logger logging.Logger) *Webhook {
	return &Webhook{
		LoggerAdapter: core.NewLoggerAdapter(logger),
		store:         store,
		launcher:      launcher,
		project:       project,
		username:      username,
	}
}

// Trigger materializes the prompt id with the parameters found in body and
// launches it in a oneshot session.
func (w *Webhook) Trigger(ctx context.Context, id string, body []byte) error {
	p, err := w.store.Get(id)
	if err != nil {
		return err
	}
	if !p.WebhookEnabled {
		return core.Errorf(core.ErrCodeWebhookDisabled, "prompt %s does not accept webhook calls", p.Name)
	}

	params, err := ParseWebhookParams(body)
	if err != nil {
		return err
	}

	commands, err := p.Materialize(params)
	if err != nil {
		return err
	}

	w.LogInfo("prompt.webhook.triggered", "prompt", p.Name, "commands", len(commands))

	return w.launcher.Launch(ctx, LaunchRequest{
		Kind:     KindOneshot,
		Origin:   p.ID,
		Project:  w.project,
		Username: w.username,
		Commands: commands,
	})
}

// ParseWebhookParams extracts prompt parameters from a webhook payload.
// Parameters are read from a "params" object when present, else from the
// top-level object. A top-level JSON string fills the unnamed parameter.
// An empty body yields no parameters.
func ParseWebhookParams(body []byte) (map[string]string, error) {
	params := map[string]string{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return params, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, core.Errorf(core.ErrCodeInvalidArguments, "webhook payload is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	if root.Type == gjson.String {
		params[""] = root.String()
		return params, nil
	}
	if !root.IsObject() {
		return nil, core.Errorf(core.ErrCodeInvalidArguments, "webhook payload must be an object or a string")
	}

	src := root
	if nested := root.Get("params"); nested.IsObject() {
		src = nested
	}

	var bad string
	src.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String:
			params[key.String()] = value.String()
		case gjson.Number, gjson.True, gjson.False:
			params[key.String()] = value.Raw
		case gjson.Null:
		default:
			bad = key.String()
			return false
		}
		return true
	})
	if bad != "" {
		return nil, core.Errorf(core.ErrCodeInvalidArguments, "webhook parameter %q must be a scalar", bad)
	}

	return params, nil
}
