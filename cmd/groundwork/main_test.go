package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork"
	"github.com/poiesic/groundwork/ai/mock"
	"github.com/poiesic/groundwork/core"
)

type cliHarness struct {
	t          *testing.T
	configPath string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "groundwork.yaml")
	content := "store:\n  provider: badger\n  batch_delay: 0s\n  badger:\n    path: " + filepath.Join(dir, "store") + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	appOptions = []groundwork.Option{groundwork.WithEmbedder(mock.NewMockEmbedderWithDimension(16))}
	t.Cleanup(func() { appOptions = nil })
	return &cliHarness{t: t, configPath: configPath}
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newCLI()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"groundwork", "--config", h.configPath, "--log-level", "error"}, args...))
	return out.String(), err
}

func TestCLI_Lifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("add", "--scope", "user=1", "--kind", "text", "Groundwork stores scoped knowledge.")
	require.NoError(t, err)
	assert.Contains(t, out, "kind=text chunks=1 added=1 skipped=0")

	out, err = h.run("add", "--scope", "user=1", "--kind", "text", "Groundwork stores scoped knowledge.")
	require.NoError(t, err)
	assert.Contains(t, out, "added=0 skipped=1")

	out, err = h.run("count")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = h.run("query", "--scope", "user=1", "--citations", "what is stored")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Groundwork stores scoped knowledge.")
	assert.Contains(t, out, "source: "+core.LocalSourceURL)

	out, err = h.run("query", "--scope", "user=2", "what is stored")
	require.NoError(t, err)
	assert.Equal(t, "no matching content\n", out)

	out, err = h.run("sources", "--scope", "user=1")
	require.NoError(t, err)
	assert.Contains(t, out, "SOURCE ID")
	assert.Contains(t, out, "text")

	out, err = h.run("exists", "--scope", "user=1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 entries")

	out, err = h.run("delete", "--scope", "user=1")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 entries\n", out)

	out, err = h.run("exists", "--scope", "user=1")
	require.NoError(t, err)
	assert.Equal(t, "0 entries\n", out)
}

func TestCLI_QnAAndDryRun(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("add", "--scope", "agent=x", "--dry-run", "--question", "What is it?", "A", "pipeline.")
	require.NoError(t, err)
	assert.Contains(t, out, "kind=qna_pair chunks=1 added=0")
	assert.Contains(t, out, "Q: What is it?\nA: A pipeline.")

	out, err = h.run("count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestCLI_AddSeveralSources(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("add", "--scope", "user=1", "--kind", "text", "first note", "second note")
	require.NoError(t, err)
	assert.Contains(t, out, "added=1")

	out, err = h.run("count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestCLI_Errors(t *testing.T) {
	h := newHarness(t)

	t.Run("missing scope", func(t *testing.T) {
		_, err := h.run("add", "--kind", "text", "no scope")
		assert.ErrorIs(t, err, core.ErrMissingScope)
	})

	t.Run("malformed scope", func(t *testing.T) {
		_, err := h.run("delete", "--scope", "user")
		assert.ErrorContains(t, err, "expected key=value")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := h.run("add", "--scope", "user=1", "--kind", "notion", "x")
		assert.Error(t, err)
	})

	t.Run("no sources", func(t *testing.T) {
		_, err := h.run("add", "--scope", "user=1")
		assert.ErrorContains(t, err, "at least one source")
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := h.run("query", "--scope", "user=1")
		assert.ErrorContains(t, err, "query text is required")
	})

	t.Run("reset needs confirmation", func(t *testing.T) {
		_, err := h.run("reset")
		assert.ErrorContains(t, err, "--yes")

		out, err := h.run("reset", "--yes")
		require.NoError(t, err)
		assert.Equal(t, "collection reset\n", out)
	})

	t.Run("invalid log level", func(t *testing.T) {
		app := newCLI()
		app.Writer = io.Discard
		app.ErrWriter = io.Discard
		err := app.Run([]string{"groundwork", "--log-level", "verbose", "count"})
		assert.ErrorContains(t, err, "invalid log level")
	})
}

func TestCLI_ScopedCommandsShareFlags(t *testing.T) {
	app := newCLI()
	scoped := map[string]bool{}
	for _, cmd := range app.Commands {
		for _, f := range cmd.Flags {
			for _, name := range f.Names() {
				if name == "scope" {
					scoped[cmd.Name] = true
				}
			}
		}
	}
	for _, name := range []string{"add", "query", "exists", "delete", "sources", "watch"} {
		assert.True(t, scoped[name], "%s should take --scope", name)
	}
	assert.False(t, scoped["count"])
	assert.False(t, scoped["reset"])
}
