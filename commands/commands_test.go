package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/hupe1980/cmdmesh/agent"
	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/interaction"
	"github.com/hupe1980/cmdmesh/internal/testutil"
	"github.com/hupe1980/cmdmesh/memory"
	"github.com/hupe1980/cmdmesh/model"
	"github.com/hupe1980/cmdmesh/prompt"
	"github.com/hupe1980/cmdmesh/schedule"
	"github.com/hupe1980/cmdmesh/thread"
	"github.com/hupe1980/cmdmesh/tool"
)

type fixture struct {
	cc        *command.Context
	proc      *command.Processor
	rec       *interaction.Recorder
	integ     *command.Integrations
	small     *model.ScriptedModel
	big       *model.ScriptedModel
	agents    *agent.Set
	fs        afero.Fs
	prompts   *prompt.InMemoryStore
	schedules *schedule.InMemoryStore
	clock     *testingclock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		rec:       interaction.NewRecorder(),
		integ:     command.NewIntegrations(),
		small:     model.NewScriptedModel("small"),
		big:       model.NewScriptedModel("big"),
		fs:        afero.NewMemMapFs(),
		prompts:   prompt.NewInMemoryStore(),
		schedules: schedule.NewInMemoryStore(),
		clock:     testingclock.NewFakeClock(time.Date(2024, time.January, 7, 9, 0, 0, 0, time.UTC)),
	}

	reg := agent.NewRegistry(agent.Backends{Small: f.small, Big: f.big}, func(o *agent.Options) { o.Stream = false })
	require.NoError(t, reg.Register(agent.Definition{Name: "helper"}))
	require.NoError(t, reg.Register(agent.Definition{Name: CuratorAgent}))
	f.agents = agent.NewSet(reg, tool.Scope{SessionID: "s1", Project: "acme", Username: "ana"})
	t.Cleanup(func() { _ = f.agents.Close() })

	f.integ.
		Register(command.IntegrationFS, f.fs).
		Register(command.IntegrationMemory, memory.NewInMemoryStore()).
		Register(command.IntegrationPrompts, f.prompts).
		Register(IntegrationSchedulers, f.schedules).
		Register(IntegrationClock, f.clock)

	f.cc = command.NewContext(func(o *command.ContextOptions) {
		o.SessionID = "s1"
		o.Project = "acme"
		o.Username = "ana"
		o.Integrations = f.integ
		o.Interaction = f.rec
		o.Agents = f.agents
	})
	f.proc = command.NewProcessor(NewTree())

	return f
}

func (f *fixture) run(t *testing.T, line string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cc, err := f.proc.Process(ctx, f.cc, line)
	require.NoError(t, err)
	f.cc = cc
}

func errorCodes(rec *interaction.Recorder) []string {
	var out []string
	for _, e := range rec.Errors() {
		out = append(out, e.Code)
	}
	return out
}

func TestLoadFolder_ExpandsInDirectoryOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, "docs/b.md", []byte("bravo"), 0o644))
	require.NoError(t, afero.WriteFile(f.fs, "docs/a.md", []byte("alpha"), 0o644))
	require.NoError(t, f.fs.MkdirAll("docs/nested", 0o755))

	f.run(t, "load folder ./docs")

	assert.Empty(t, f.rec.Errors())
	msgs := f.cc.Thread.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, FileMessage("docs/a.md", "alpha"), msgs[0].Text())
	assert.Equal(t, FileMessage("docs/b.md", "bravo"), msgs[1].Text())
	assert.Equal(t, thread.RoleUser, msgs[0].Role)
	assert.Equal(t, []string{"loaded docs/a.md (5 bytes)", "loaded docs/b.md (5 bytes)"}, f.rec.Texts())
	assert.Zero(t, f.cc.Queue.Len())
}

func TestLoadFile_Errors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.MkdirAll("docs", 0o755))

	f.run(t, "load file missing.md")
	f.run(t, "load file docs")
	f.run(t, "load file")
	f.run(t, "load")

	assert.Equal(t, []string{
		core.ErrCodeNotFound,
		core.ErrCodeInvalidArguments,
		core.ErrCodeInvalidArguments,
		core.ErrCodeUnknownCommand,
	}, errorCodes(f.rec))
	assert.Zero(t, f.cc.Thread.Len())
}

func TestLoad_RequiresFS(t *testing.T) {
	f := newFixture(t)
	f.integ.Unregister(command.IntegrationFS)

	f.run(t, "load file a.md")

	assert.Equal(t, []string{core.ErrCodeMissingIntegration}, errorCodes(f.rec))
}

func TestHelp(t *testing.T) {
	f := newFixture(t)

	f.run(t, "help")
	require.Len(t, f.rec.Texts(), 1)
	out := f.rec.Texts()[0]
	for _, w := range []string{"help", "load", "memory", "ask", "prompt", "schedule", "thread", "@<agent>"} {
		assert.Contains(t, out, w)
	}
	assert.NotContains(t, out, "_echo")

	f.run(t, "help load")
	assert.Contains(t, f.rec.Texts()[1], "folder")

	assert.Equal(t, []string{"ask", "help", "load", "memory", "prompt", "schedule", "thread"}, Words(f.proc.Tree()))
}

func TestMemoryCommands(t *testing.T) {
	f := newFixture(t)

	f.run(t, "memory add Deploys happen on Fridays")
	f.run(t, "memory search fridays")
	f.run(t, "memory search kubernetes")

	texts := f.rec.Texts()
	require.Len(t, texts, 3)
	assert.True(t, strings.HasPrefix(texts[0], "remembered mem_"))
	assert.Contains(t, texts[1], "Deploys happen on Fridays")
	assert.Equal(t, "no memories match", texts[2])
}

func TestMemoryCurate_EnqueuesCurator(t *testing.T) {
	f := newFixture(t)

	f.run(t, "memory curate deployments")

	assert.Empty(t, f.rec.Errors())
	assert.Equal(t, []string{"small: deployments"}, f.rec.Texts())
	require.Len(t, f.small.Requests(), 1)
}

func TestAsk_RunsDefaultAgent(t *testing.T) {
	f := newFixture(t)

	f.run(t, "ask what is up")

	assert.Equal(t, []string{"small: what is up"}, f.rec.Texts())
	msgs := f.cc.Thread.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "what is up", msgs[0].Text())
	assert.Equal(t, "small: what is up", msgs[1].Text())
}

func TestAgentRoute_TierEscalation(t *testing.T) {
	f := newFixture(t)

	f.run(t, "@helper + think hard")
	f.run(t, "@helper again")
	f.run(t, "@helper - quick one")

	assert.Equal(t, []string{"big: think hard", "big: again", "small: quick one"}, f.rec.Texts())
	assert.Equal(t, 2, f.big.Calls())
	assert.Equal(t, 1, f.small.Calls())
}

func TestAgentRoute_UnknownAgentAsksForChoice(t *testing.T) {
	f := newFixture(t)
	var asked core.Choice
	f.rec.Responder = func(q core.Question) (string, error) {
		asked = q.(core.Choice)
		return "helper", nil
	}

	f.run(t, "@helpr hello")

	assert.Equal(t, []string{CuratorAgent, "helper"}, asked.Options)
	assert.Equal(t, "helper", asked.Default)
	assert.Equal(t, []string{"small: hello"}, f.rec.Texts())
}

func TestAgentRoute_InvalidChoice(t *testing.T) {
	f := newFixture(t)
	f.rec.Responder = func(core.Question) (string, error) { return "nobody", nil }

	f.run(t, "@helpr hello")

	assert.Equal(t, []string{core.ErrCodeInvalidArguments}, errorCodes(f.rec))
	assert.Zero(t, f.small.Calls())
}

func TestAgentRoute_BackendFailureIsForwarded(t *testing.T) {
	f := newFixture(t)
	f.small.Then(model.Turn{Err: assert.AnError})

	f.run(t, "@helper hi")
	f.run(t, "_echo still alive")

	assert.Equal(t, []string{core.ErrCodeBackendFailed}, errorCodes(f.rec))
	assert.Equal(t, []string{"still alive"}, f.rec.Texts())
}

func TestPromptCommands(t *testing.T) {
	f := newFixture(t)

	f.run(t, "prompt add greet _echo hello {{who}} ;; _echo bye {{who}}")
	f.run(t, "prompt list")
	f.run(t, "prompt run greet who=world")

	assert.Empty(t, f.rec.Errors())
	assert.Equal(t, []string{
		"stored prompt greet (params=who)",
		"greet [local] params=who",
		"hello world",
		"bye world",
	}, f.rec.Texts())
}

func TestPromptRun_AsksForMissingParams(t *testing.T) {
	f := newFixture(t)
	p, err := prompt.New("review", []string{"_echo {{file}} by {{owner}}"})
	require.NoError(t, err)
	require.NoError(t, f.prompts.Save(p))

	var asked []string
	f.rec.Responder = func(q core.Question) (string, error) {
		inv := q.(core.Invite)
		asked = append(asked, inv.Prompt)
		return "bob", nil
	}

	f.run(t, "prompt run review file=main.go")

	assert.Equal(t, []string{"review: value for owner?"}, asked)
	assert.Equal(t, []string{"main.go by bob"}, f.rec.Texts())
}

func TestPromptRun_UnnamedParameter(t *testing.T) {
	f := newFixture(t)
	p, err := prompt.New("say", []string{"_echo >> {{}}"})
	require.NoError(t, err)
	require.NoError(t, f.prompts.Save(p))

	f.run(t, "prompt run say good morning")
	f.run(t, "prompt run say what is a=b")

	assert.Equal(t, []string{">> good morning", ">> what is a=b"}, f.rec.Texts())
}

func TestPromptDelete_ProjectPromptsAreProtected(t *testing.T) {
	f := newFixture(t)
	p, err := prompt.New("shared", []string{"x"}, func(o *prompt.Options) { o.Source = prompt.SourceProject })
	require.NoError(t, err)
	require.NoError(t, f.prompts.Save(p))

	f.run(t, "prompt delete shared")
	f.run(t, "prompt run nope")

	assert.Equal(t, []string{core.ErrCodeInvalidArguments, core.ErrCodeNotFound}, errorCodes(f.rec))
}

func TestParseParams(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "": "free text"}, ParseParams("a=1 free b=x=y text"))
	assert.Equal(t, map[string]string{"": "=odd"}, ParseParams("=odd"))
	assert.Empty(t, ParseParams("  "))
}

func TestScheduleCommands(t *testing.T) {
	f := newFixture(t)
	p, err := prompt.New("standup", []string{"_echo {{team}}"})
	require.NoError(t, err)
	require.NoError(t, f.prompts.Save(p))

	f.run(t, "schedule add standup 1d days=1,3,5 times=3 team=infra")
	require.Empty(t, f.rec.Errors())

	list, err := f.schedules.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	s := list[0]
	assert.Equal(t, p.ID, s.PromptID)
	assert.Equal(t, map[string]string{"team": "infra"}, s.Params)
	assert.Equal(t, "ana", s.CreatedBy)
	assert.Equal(t, "acme", s.Project)
	assert.Equal(t, time.Monday, s.NextRun.Weekday())

	f.run(t, "schedule disable "+s.ID)
	got, err := f.schedules.Get(s.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	f.run(t, "schedule enable "+s.ID)
	f.run(t, "schedule list")
	assert.Contains(t, f.rec.Texts()[len(f.rec.Texts())-1], "PENDING every 1d")

	f.run(t, "schedule add standup 1x team=infra")
	f.run(t, "schedule add standup 1d")
	f.run(t, "schedule delete "+s.ID)
	f.run(t, "schedule delete "+s.ID)

	assert.Equal(t, []string{core.ErrCodeInvalidInterval, core.ErrCodeInvalidArguments, core.ErrCodeNotFound}, errorCodes(f.rec))
}

func TestThreadShow(t *testing.T) {
	f := newFixture(t)
	f.cc.WindowBudget = thread.Budget(5)
	f.cc.Thread.Append(testutil.NewThreadBuilder("s1").Sized("ana", 10, 3).Messages()...)

	f.run(t, "thread show")

	assert.Equal(t, []string{"thread s1: 2 messages, 13 chars, budget 5, 1 in window, 1 overflow"}, f.rec.Texts())
}
