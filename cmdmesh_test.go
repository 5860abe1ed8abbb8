package cmdmesh

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/hupe1980/cmdmesh/agent"
	"github.com/hupe1980/cmdmesh/config"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/interaction"
	"github.com/hupe1980/cmdmesh/metrics"
	"github.com/hupe1980/cmdmesh/model"
	anthropicmodel "github.com/hupe1980/cmdmesh/model/anthropic"
	openaimodel "github.com/hupe1980/cmdmesh/model/openai"
	"github.com/hupe1980/cmdmesh/prompt"
	"github.com/hupe1980/cmdmesh/schedule"
	"github.com/hupe1980/cmdmesh/session"
)

var monday = time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)

type harness struct {
	mesh    *Mesh
	small   *model.ScriptedModel
	sink    *interaction.Recorder
	metrics *metrics.Collector
	clock   *testingclock.FakeClock
	fs      afero.Fs
}

func newHarness(t *testing.T, mutate func(c *config.Config)) *harness {
	t.Helper()

	h := &harness{
		small:   model.NewScriptedModel("small"),
		sink:    interaction.NewRecorder(),
		metrics: metrics.New(),
		clock:   testingclock.NewFakeClock(monday),
		fs:      afero.NewMemMapFs(),
	}

	cfg := config.DefaultConfig()
	cfg.Workspace.Root = "/ws"
	if mutate != nil {
		mutate(cfg)
	}

	m, err := New(cfg, func(o *Options) {
		o.Backends = &agent.Backends{Small: h.small}
		o.HostFs = h.fs
		o.Clock = h.clock
		o.LaunchSink = h.sink
		o.Metrics = h.metrics
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	h.mesh = m

	return h
}

func (h *harness) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(h.fs, path, []byte(content), 0o644))
}

func TestMesh_InteractiveSession(t *testing.T) {
	h := newHarness(t, nil)
	h.write(t, "/ws/notes.md", "remember the milk")
	h.small.Then(model.Turn{Text: "buy milk"})

	ctx := context.Background()
	require.NoError(t, h.mesh.Start(ctx))

	rec := interaction.NewRecorder()
	s, err := h.mesh.Open(ctx, func(o *session.OpenOptions) {
		o.Interaction = rec
		o.Username = "ana"
	})
	require.NoError(t, err)

	require.NoError(t, s.Submit(ctx, "load file notes.md"))
	require.NoError(t, s.Submit(ctx, "ask what should I buy?"))
	require.NoError(t, s.Submit(ctx, "load file ../../etc/passwd"))

	texts := rec.Texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, "loaded notes.md (17 bytes)", texts[0])
	assert.Contains(t, texts, "buy milk")

	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, core.ErrCodeNotFound, rec.Errors()[0].Code)

	msgs := s.Thread().Messages()
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, "[file notes.md]\nremember the milk", msgs[0].Content.Text())

	n, err := testutil.GatherAndCount(h.metrics.Registry(), "cmdmesh_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMesh_WebhookLaunchesProjectPrompt(t *testing.T) {
	h := newHarness(t, nil)
	h.write(t, "/ws/.cmdmesh/prompts/greet.yaml", "webhook: true\ncommands:\n  - _echo hello {{who}}\n")
	h.write(t, "/ws/.cmdmesh/prompts/quiet.yaml", "commands:\n  - _echo shh\n")

	ctx := context.Background()
	require.NoError(t, h.mesh.Start(ctx))

	p, err := h.mesh.Prompts().GetByName("greet")
	require.NoError(t, err)
	assert.Equal(t, prompt.ProjectID("greet"), p.ID)
	assert.Equal(t, prompt.SourceProject, p.Source)

	require.NoError(t, h.mesh.Webhook().Trigger(ctx, p.ID, []byte(`{"who":"bob"}`)))
	assert.Equal(t, []string{"hello bob"}, h.sink.Texts())

	err = h.mesh.Webhook().Trigger(ctx, prompt.ProjectID("quiet"), nil)
	assert.Equal(t, core.ErrCodeWebhookDisabled, core.CodeOf(err))

	assert.Empty(t, h.mesh.Manager().Sessions())
}

func TestMesh_SchedulerFiresThroughManager(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Scheduler.Enabled = true })
	ctx := context.Background()

	p, err := prompt.New("tick", []string{"_echo tick {{n}}"})
	require.NoError(t, err)
	require.NoError(t, h.mesh.Prompts().Save(p))

	s, err := schedule.New(p.ID, schedule.IntervalSchedule{Start: monday, Interval: "1h"}, monday,
		func(o *schedule.Options) { o.Params = map[string]string{"n": "1"} })
	require.NoError(t, err)
	require.NoError(t, h.mesh.Schedulers().Save(s))

	fired, err := h.mesh.Scheduler().RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{"tick 1"}, h.sink.Texts())

	got, err := h.mesh.Schedulers().Get(s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextRun)
	assert.Equal(t, monday.Add(time.Hour), *got.NextRun)
	assert.Equal(t, 1, got.OccurrenceCount)
}

func TestMesh_SQLiteStoragePersists(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Workspace.Root = dir
	cfg.Storage.Driver = config.StorageSQLite
	cfg.Storage.Path = "state/mesh.db"

	m, err := New(cfg)
	require.NoError(t, err)

	p, err := prompt.New("daily", []string{"_echo hi"})
	require.NoError(t, err)
	require.NoError(t, m.Prompts().Save(p))
	require.NoError(t, m.Close())

	assert.FileExists(t, filepath.Join(dir, "state", "mesh.db"))

	m, err = New(cfg)
	require.NoError(t, err)
	defer m.Close()

	got, err := m.Prompts().GetByName("daily")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "mongo"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(config.ModelConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewModel(config.ModelConfig{Provider: config.ProviderScripted})
	require.NoError(t, err)
	assert.IsType(t, &model.ScriptedModel{}, m)

	m, err = NewModel(config.ModelConfig{Provider: config.ProviderAnthropic, Model: "claude-3-5-haiku-latest", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &anthropicmodel.Model{}, m)

	m, err = NewModel(config.ModelConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &openaimodel.Model{}, m)

	_, err = NewModel(config.ModelConfig{Provider: "acme"})
	assert.Error(t, err)
}
