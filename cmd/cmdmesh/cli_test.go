package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/config"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetArgs(append(args, "--no-color"))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		configPath, workspace, resumeID, metricsAddr = "", "", "", ""
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExec(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("hello"), 0o644))

	out, err := execute(t, "", "exec", "-w", dir, "_echo hi there", "load file notes.md")
	require.NoError(t, err)
	assert.Contains(t, out, "hi there\n")
	assert.Contains(t, out, "loaded notes.md (5 bytes)\n")
}

func TestExec_FailsOnCommandError(t *testing.T) {
	out, err := execute(t, "", "exec", "-w", t.TempDir(), "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 command(s) failed")
	assert.Contains(t, out, "UNKNOWN_COMMAND")
}

func TestREPL(t *testing.T) {
	out, err := execute(t, "_echo one\n\n_echo two\nexit\n_echo never\n", "repl", "-w", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "one\n")
	assert.Contains(t, out, "two\n")
	assert.NotContains(t, out, "never")
}

func TestWebhook(t *testing.T) {
	dir := t.TempDir()
	promptDir := filepath.Join(dir, ".cmdmesh", "prompts")
	require.NoError(t, os.MkdirAll(promptDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(promptDir, "greet.yaml"),
		[]byte("webhook: true\ncommands:\n  - _echo hello {{who}}\n"), 0o644))

	out, err := execute(t, `{"params":{"who":"bob"}}`, "webhook", "-w", dir, "greet", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "hello bob\n")

	_, err = execute(t, "", "webhook", "-w", dir, "missing")
	assert.Error(t, err)
}

func TestConfigCommand_RedactsKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmdmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  small:
    provider: openai
    model: gpt-4o-mini
    api_key: sk-secret
agents:
  definitions:
    - name: helper
`), 0o644))

	out, err := execute(t, "", "config", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "api_key: <redacted>")
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "name: helper")
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := loadConfig(fs, "", func(k string) (string, bool) {
		if k == "CMDMESH_PROJECT" {
			return "infra", true
		}
		return "", false
	})
	require.NoError(t, err)
	assert.Equal(t, "infra", c.Project)
	assert.Equal(t, config.ProviderScripted, c.Models.Small.Provider)

	require.NoError(t, afero.WriteFile(fs, defaultConfigFile, []byte("project: from-file\n"), 0o644))
	c, err = loadConfig(fs, "", func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.Project)
}
