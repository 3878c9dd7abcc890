package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRC = `
alias gst='git status'
complete -W "build test vet" gotool
`

type testEnv struct {
	workDir     string
	binDir      string
	rcPath      string
	historyPath string
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{
		workDir:     filepath.Join(root, "work"),
		binDir:      filepath.Join(root, "bin"),
		rcPath:      filepath.Join(root, ".gcomprc"),
		historyPath: filepath.Join(root, "history.db"),
	}

	require.NoError(t, os.MkdirAll(filepath.Join(env.workDir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.workDir, "go.mod"), []byte("module x\n"), 0644))
	require.NoError(t, os.MkdirAll(env.binDir, 0755))
	for _, name := range []string{"git", "gotool", "grep"} {
		require.NoError(t, os.WriteFile(filepath.Join(env.binDir, name), []byte("#!/bin/sh\n"), 0755))
	}
	require.NoError(t, os.WriteFile(env.rcPath, []byte(testRC), 0644))
	return env
}

func newEngine(t *testing.T, env testEnv, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RCFile = env.rcPath
	cfg.Snippets = map[string]string{"gcm": `git commit -m ""`}
	if mutate != nil {
		mutate(cfg)
	}

	e, err := New(context.Background(), Options{
		Config:      cfg,
		HistoryPath: env.historyPath,
		WorkingDir:  env.workDir,
		Env:         []string{"PATH=" + env.binDir, "HOME=" + env.workDir},
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func labels(reply *completion.Reply) []string {
	result := make([]string, len(reply.Items))
	for i, item := range reply.Items {
		result[i] = item.Label
	}
	return result
}

func TestNewBuildsProvidersInConfiguredOrder(t *testing.T) {
	env := setupEnv(t)

	e := newEngine(t, env, nil)
	// predict has no model configured, so it is left out.
	assert.Equal(t, []string{"commands", "specs", "files", "keywords", "history", "snippets"}, e.ProviderIDs())

	e = newEngine(t, env, func(c *config.Config) {
		c.Providers = []string{"files", "commands"}
	})
	assert.Equal(t, []string{"files", "commands"}, e.ProviderIDs())
}

func TestNewWithoutHistory(t *testing.T) {
	env := setupEnv(t)

	e, err := New(context.Background(), Options{
		Config:     config.DefaultConfig(),
		WorkingDir: env.workDir,
		Env:        []string{"PATH=" + env.binDir},
	})
	require.NoError(t, err)
	defer e.Close()

	assert.NotContains(t, e.ProviderIDs(), "history")
	assert.ErrorIs(t, e.Record("ls", env.workDir, 0), ErrHistoryDisabled)
	_, err = e.SearchHistory("ls", 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	assert.ErrorIs(t, e.ForgetHistory(1), ErrHistoryDisabled)
	assert.ErrorIs(t, e.ResetHistory(), ErrHistoryDisabled)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers = []string{"nope"}

	_, err := New(context.Background(), Options{Config: cfg, WorkingDir: t.TempDir(), Env: []string{}})
	assert.ErrorIs(t, err, config.ErrUnknownProvider)
}

func TestComplete(t *testing.T) {
	env := setupEnv(t)
	e := newEngine(t, env, nil)
	ctx := context.Background()

	t.Run("command word merges aliases, executables and keywords", func(t *testing.T) {
		reply := e.Complete(ctx, "g", 1)
		require.NotNil(t, reply)
		got := labels(reply)
		assert.Equal(t, "gst", got[0])
		assert.Subset(t, got, []string{"gst", "git", "gotool", "grep", "gcm"})
		assert.Equal(t, 0, reply.Start)
		assert.Equal(t, 1, reply.End)
	})

	t.Run("spec arguments before files", func(t *testing.T) {
		reply := e.Complete(ctx, "gotool ", 7)
		require.NotNil(t, reply)
		got := labels(reply)
		require.GreaterOrEqual(t, len(got), 5)
		assert.Equal(t, []string{"build", "test", "vet"}, got[:3])
		assert.Subset(t, got, []string{"go.mod", "src/"})
	})

	t.Run("sources are recorded", func(t *testing.T) {
		reply := e.Complete(ctx, "cat go", 6)
		require.NotNil(t, reply)
		require.Len(t, reply.Items, 1)
		assert.Equal(t, "go.mod", reply.Items[0].Label)
		assert.Equal(t, "files", reply.Items[0].Source)
	})

	t.Run("history completes the rest of the line", func(t *testing.T) {
		require.NoError(t, e.Record("gotool test ./...", env.workDir, 0))
		require.NoError(t, e.Record("  ", env.workDir, 0))

		reply := e.Complete(ctx, "gotool te", 9)
		require.NotNil(t, reply)

		var historyItem *completion.Item
		for i := range reply.Items {
			if reply.Items[i].Source == "history" {
				historyItem = &reply.Items[i]
			}
		}
		require.NotNil(t, historyItem)
		assert.Equal(t, "gotool test ./...", historyItem.Label)
		assert.Equal(t, "test ./...", historyItem.InsertText)
		assert.Equal(t, 7, reply.Start)
	})
}

func TestHistoryMaintenance(t *testing.T) {
	env := setupEnv(t)
	e := newEngine(t, env, nil)
	ctx := context.Background()

	for _, command := range []string{"gotool test ./...", "gotool vet ./...", "git status"} {
		require.NoError(t, e.Record(command, env.workDir, 0))
	}

	entries, err := e.SearchHistory("gotool", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "gotool vet ./...", entries[0].Command)

	require.NoError(t, e.ForgetHistory(entries[0].ID))
	assert.Error(t, e.ForgetHistory(entries[0].ID))

	reply := e.Complete(ctx, "gotool ", 7)
	require.NotNil(t, reply)
	assert.Contains(t, labels(reply), "gotool test ./...")
	assert.NotContains(t, labels(reply), "gotool vet ./...")

	require.NoError(t, e.ResetHistory())
	entries, err = e.SearchHistory("", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHint(t *testing.T) {
	env := setupEnv(t)

	e := newEngine(t, env, nil)
	assert.True(t, e.Hint(false, completion.ChangeEvent{Inserted: "g"}))
	assert.False(t, e.Hint(true, completion.ChangeEvent{Inserted: "g"}))

	e = newEngine(t, env, func(c *config.Config) {
		c.Providers = []string{"files", "commands"}
	})
	assert.True(t, e.Hint(false, completion.ChangeEvent{Inserted: "/"}))
	assert.False(t, e.Hint(false, completion.ChangeEvent{Inserted: "g"}))
}

func TestCompleteWithShortTimeout(t *testing.T) {
	env := setupEnv(t)
	e := newEngine(t, env, func(c *config.Config) {
		c.Timeout = 50 * time.Millisecond
		c.Providers = []string{"commands"}
	})

	start := time.Now()
	reply := e.Complete(context.Background(), "gi", 2)
	require.NotNil(t, reply)
	assert.Equal(t, []string{"git"}, labels(reply))
	assert.Less(t, time.Since(start), time.Second)
}

func TestEnvToMap(t *testing.T) {
	m := envToMap([]string{"A=1", "B=x=y", "broken"})
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, m)
}
