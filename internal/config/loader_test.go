package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinylittleshell/gcomp/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader(nil)
	assert.NotNil(t, loader)
}

func TestLoader_LoadFromString_EmptySource(t *testing.T) {
	loader := NewLoader(nil)
	result, err := loader.LoadFromString("")

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.NotNil(t, result.Config)
	assert.Empty(t, result.Errors)

	// Should have default values
	assert.Equal(t, DefaultConfig(), result.Config)
}

func TestLoader_LoadFromString_FullConfig(t *testing.T) {
	source := `
log_level: debug
timeout: 750ms
providers: [history, commands, files]
rc_file: /etc/gcomprc
history:
  limit: 5
files:
  show_hidden: true
snippets:
  gcm: git commit -m ""
  kgp: kubectl get pods
predict:
  model: qwen2.5-coder
  base_url: http://localhost:11434/v1
  api_key_env: OLLAMA_KEY
  max_items: 2
`
	loader := NewLoader(nil)
	result, err := loader.LoadFromString(source)

	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	cfg := result.Config
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"history", "commands", "files"}, cfg.Providers)
	assert.Equal(t, "/etc/gcomprc", cfg.RCFile)
	assert.Equal(t, 5, cfg.History.Limit)
	assert.True(t, cfg.Files.ShowHidden)
	assert.Equal(t, map[string]string{"gcm": `git commit -m ""`, "kgp": "kubectl get pods"}, cfg.Snippets)
	assert.Equal(t, PredictConfig{
		Model:     "qwen2.5-coder",
		BaseURL:   "http://localhost:11434/v1",
		APIKeyEnv: "OLLAMA_KEY",
		MaxItems:  2,
	}, cfg.Predict)
}

func TestLoader_LoadFromString_PartialConfigKeepsDefaults(t *testing.T) {
	loader := NewLoader(nil)
	result, err := loader.LoadFromString("timeout: 2s\n")

	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2*time.Second, result.Config.Timeout)
	assert.Equal(t, "info", result.Config.LogLevel)
	assert.Equal(t, DefaultConfig().Providers, result.Config.Providers)
	assert.Equal(t, 10, result.Config.History.Limit)
}

func TestLoader_LoadFromString_UnknownKey(t *testing.T) {
	loader := NewLoader(nil)
	result, err := loader.LoadFromString("log_level: warn\ncolour: true\n")

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "colour")
	assert.Equal(t, "warn", result.Config.LogLevel)
}

func TestLoader_LoadFromString_SyntaxError(t *testing.T) {
	loader := NewLoader(nil)
	result, err := loader.LoadFromString("providers: [commands\n")

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "parse error")
	assert.Equal(t, DefaultConfig(), result.Config)
}

func TestLoader_LoadFromString_InvalidConfigUsesDefaults(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   error
	}{
		{"unknown provider", "providers: [commands, magic]\n", ErrUnknownProvider},
		{"duplicate provider", "providers: [files, files]\n", ErrDuplicateProvider},
		{"negative timeout", "timeout: -1s\n", ErrInvalidTimeout},
		{"bad log level", "log_level: loud\n", ErrInvalidLogLevel},
	}

	loader := NewLoader(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := loader.LoadFromString(tt.source)
			require.NoError(t, err)
			require.Len(t, result.Errors, 1)
			assert.ErrorIs(t, result.Errors[0], tt.want)
			assert.Equal(t, DefaultConfig(), result.Config)
		})
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	loader := NewLoader(nil)

	t.Run("missing file", func(t *testing.T) {
		result, err := loader.LoadFromFile(filepath.Join(t.TempDir(), "config.yaml"))
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("providers: [keywords]\n"), 0644))

		result, err := loader.LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"keywords"}, result.Config.Providers)
	})

	t.Run("unreadable path", func(t *testing.T) {
		_, err := loader.LoadFromFile(t.TempDir())
		assert.Error(t, err)
	})
}

func TestLoader_LoadDefaultConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	core.ResetPaths()
	defer core.ResetPaths()

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".gcomp"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".gcomp", "config.yaml"), []byte("log_level: error\n"), 0644))

	result, err := NewLoader(nil).LoadDefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "error", result.Config.LogLevel)
}
