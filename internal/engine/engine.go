// Package engine wires the shell, the history store and the configured
// completion providers into a single completion service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/completion/completers"
	"github.com/atinylittleshell/gcomp/internal/config"
	"github.com/atinylittleshell/gcomp/internal/history"
	"github.com/atinylittleshell/gcomp/internal/shell"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrHistoryDisabled is returned by Record when no history store is open.
var ErrHistoryDisabled = errors.New("history is disabled")

// predictContextEntries is the number of recent commands sent as prediction context.
const predictContextEntries = 5

// Options holds configuration for creating an Engine.
type Options struct {
	// Config selects and configures providers. If nil, DefaultConfig is used.
	Config *config.Config

	// Logger for debug output. If nil, a no-op logger is used.
	Logger *zap.Logger

	// HistoryPath is the SQLite history database. Empty disables history.
	HistoryPath string

	// WorkingDir for path completion. Empty means the process working directory.
	WorkingDir string

	// Env is the environment seen by the shell and providers. Nil means os.Environ().
	Env []string

	// Stdout and Stderr receive output of the rc file. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Engine answers completion requests for one editing session.
type Engine struct {
	shell         *shell.Shell
	history       *history.HistoryManager
	reconciliator *completion.Reconciliator
	logger        *zap.Logger
}

// New creates the shell, loads the rc file, opens history and builds the
// configured providers in order.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	workingDir := opts.WorkingDir
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workingDir = wd
	}

	sh, err := shell.New(shell.Options{
		Dir:    workingDir,
		Env:    env,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.RCFile != "" {
		if err := sh.LoadRC(ctx, cfg.RCFile); err != nil {
			logger.Warn("failed to load rc file", zap.String("path", cfg.RCFile), zap.Error(err))
		}
	}

	e := &Engine{
		shell:  sh,
		logger: logger,
	}

	if opts.HistoryPath != "" && (cfg.HasProvider(completers.HistoryID) || cfg.HasProvider(completers.PredictID)) {
		historyManager, err := history.NewHistoryManager(opts.HistoryPath)
		if err != nil {
			logger.Warn("failed to open history, history completions disabled",
				zap.String("path", opts.HistoryPath), zap.Error(err))
		} else {
			e.history = historyManager
		}
	}

	envMap := envToMap(env)
	providers := e.buildProviders(cfg, envMap)

	e.reconciliator, err = completion.NewReconciliator(completion.ReconciliatorConfig{
		Context: &completion.EditorContext{
			WorkingDir: workingDir,
			Language:   "bash",
			Env:        envMap,
		},
		Providers: providers,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	})
	if err != nil {
		e.Close()
		return nil, err
	}

	logger.Debug("completion engine ready", zap.Strings("providers", e.ProviderIDs()))
	return e, nil
}

func (e *Engine) buildProviders(cfg *config.Config, env map[string]string) []completion.Provider {
	providers := make([]completion.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case completers.CommandID:
			providers = append(providers, completers.NewCommandProvider(e.shell))
		case completers.SpecID:
			providers = append(providers, completers.NewSpecProvider(e.shell))
		case completers.FileID:
			providers = append(providers, completers.NewFileProvider(completers.FileProviderConfig{
				Shell:      e.shell,
				ShowHidden: cfg.Files.ShowHidden,
			}))
		case completers.KeywordID:
			providers = append(providers, completers.NewKeywordProvider())
		case completers.HistoryID:
			if e.history == nil {
				e.logger.Debug("skipping history provider, no history store")
				continue
			}
			providers = append(providers, completers.NewHistoryProvider(completers.HistoryProviderConfig{
				History: e.history,
				Limit:   cfg.History.Limit,
			}))
		case completers.SnippetID:
			providers = append(providers, completers.NewSnippetProvider(cfg.Snippets))
		case completers.PredictID:
			if cfg.Predict.Model == "" {
				e.logger.Debug("skipping predict provider, no model configured")
				continue
			}
			providers = append(providers, completers.NewPredictProvider(completers.PredictProviderConfig{
				Model:       cfg.Predict.Model,
				BaseURL:     cfg.Predict.BaseURL,
				APIKey:      env[cfg.Predict.APIKeyEnv],
				MaxItems:    cfg.Predict.MaxItems,
				ContextFunc: e.predictContext,
				Logger:      e.logger,
			}))
		}
	}
	return providers
}

// predictContext feeds the most recent commands to the model.
func (e *Engine) predictContext() map[string]string {
	if e.history == nil {
		return nil
	}
	entries, err := e.history.GetRecentEntries("", predictContextEntries)
	if err != nil {
		e.logger.Debug("failed to read history for prediction context", zap.Error(err))
		return nil
	}
	commands := lo.Map(entries, func(entry history.HistoryEntry, _ int) string {
		return entry.Command
	})
	return map[string]string{"history": strings.Join(commands, "\n")}
}

// Complete returns the merged completions for the cursor at byte offset pos
// of line, or nil when no provider answered in time.
func (e *Engine) Complete(ctx context.Context, line string, pos int) *completion.Reply {
	return e.reconciliator.Fetch(ctx, completion.Request{
		Offset:  pos,
		Text:    line,
		Trigger: &completion.Trigger{Kind: completion.TriggerInvoked},
	})
}

// Hint reports whether an edit should pop up completions on its own.
func (e *Engine) Hint(visible bool, change completion.ChangeEvent) bool {
	return e.reconciliator.ShouldShowContinuousHint(visible, change)
}

// Record stores an executed command in history.
func (e *Engine) Record(command string, directory string, exitCode int) error {
	if e.history == nil {
		return ErrHistoryDisabled
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	if _, err := e.history.RecordCommand(command, directory, exitCode); err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// SearchHistory returns recorded commands containing query, newest first.
func (e *Engine) SearchHistory(query string, limit int) ([]history.HistoryEntry, error) {
	if e.history == nil {
		return nil, ErrHistoryDisabled
	}
	entries, err := e.history.SearchHistory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search history: %w", err)
	}
	return entries, nil
}

// ForgetHistory deletes one recorded command by id.
func (e *Engine) ForgetHistory(id uint) error {
	if e.history == nil {
		return ErrHistoryDisabled
	}
	return e.history.DeleteEntry(id)
}

// ResetHistory deletes every recorded command.
func (e *Engine) ResetHistory() error {
	if e.history == nil {
		return ErrHistoryDisabled
	}
	if err := e.history.ResetHistory(); err != nil {
		return fmt.Errorf("failed to reset history: %w", err)
	}
	return nil
}

// ProviderIDs returns the identifiers of the active providers in priority order.
func (e *Engine) ProviderIDs() []string {
	return lo.Map(e.reconciliator.Providers(), func(p completion.Provider, _ int) string {
		return p.Identifier()
	})
}

// Shell returns the shell holding the rc file state.
func (e *Engine) Shell() *shell.Shell {
	return e.shell
}

// Close releases the history store.
func (e *Engine) Close() error {
	if e.history == nil {
		return nil
	}
	return e.history.Close()
}

func envToMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
