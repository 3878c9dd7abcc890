// Package shell wraps the mvdan/sh interpreter that loads the user's rc file
// and runs bash completion functions registered with `complete -F`.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// threadSafeBuffer provides a thread-safe wrapper around bytes.Buffer
type threadSafeBuffer struct {
	buffer bytes.Buffer
	mutex  sync.Mutex
}

// Write implements io.Writer interface
func (b *threadSafeBuffer) Write(p []byte) (n int, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(p)
}

// String returns the contents of the buffer as a string
func (b *threadSafeBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.String()
}

// ExecMiddleware is a function that wraps an ExecHandlerFunc to provide
// additional functionality such as builtin interception.
type ExecMiddleware = func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc

// Options holds configuration for creating a Shell.
type Options struct {
	// Dir is the working directory. Empty means the process working directory.
	Dir string

	// Env is the initial environment. Nil means os.Environ().
	Env []string

	// Stdout and Stderr receive output of scripts run in the main runner.
	// Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Specs receives `complete` registrations. If nil, a new registry is used.
	Specs *SpecRegistry

	// Logger for debug output. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// Shell is a bash interpreter shared by completion providers.
// Scripts run in the main runner take the write lock; providers only read
// state or work in subshells, so they can run concurrently.
type Shell struct {
	runner *interp.Runner
	specs  *SpecRegistry
	logger *zap.Logger

	mu sync.RWMutex
}

// New creates a new Shell with the `complete` and `compgen` builtins installed.
func New(opts Options) (*Shell, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	specs := opts.Specs
	if specs == nil {
		specs = NewSpecRegistry()
	}

	envList := opts.Env
	if envList == nil {
		envList = os.Environ()
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	s := &Shell{
		specs:  specs,
		logger: logger,
	}

	runnerOpts := []interp.RunnerOption{
		interp.Interactive(true),
		interp.Env(expand.ListEnviron(envList...)),
		interp.StdIO(nil, stdout, stderr),
		interp.ExecHandlers(
			NewCompleteCommandHandler(specs),
			NewCompgenCommandHandler(),
		),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bash runner: %w", err)
	}
	s.runner = runner

	return s, nil
}

// Specs returns the registry populated by the `complete` builtin.
func (s *Shell) Specs() *SpecRegistry {
	return s.specs
}

// Dir returns the runner's working directory.
func (s *Shell) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runner.Dir
}

// Run parses and runs a script in the main runner.
func (s *Shell) Run(ctx context.Context, reader io.Reader, name string) error {
	prog, err := syntax.NewParser().Parse(reader, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner.Run(ctx, prog)
}

// LoadRC runs a bash rc file in the main runner. A missing or empty file is
// not an error.
func (s *Shell) LoadRC(ctx context.Context, path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat rc file: %w", err)
	}
	if stat.Size() == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open rc file: %w", err)
	}
	defer f.Close()

	s.logger.Debug("loading rc file", zap.String("path", path))
	if err := s.Run(ctx, f, path); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			// A failing last command in an rc file is not worth refusing to start over.
			s.logger.Debug("rc file exited with non-zero status",
				zap.String("path", path), zap.Int("status", int(exitStatus)))
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// GetVar returns the string value of a shell variable.
func (s *Shell) GetVar(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runner.Vars != nil {
		if v, ok := s.runner.Vars[name]; ok {
			return v.String()
		}
	}
	return s.runner.Env.Get(name).String()
}

// Aliases returns the names of the aliases defined in the runner, sorted.
func (s *Shell) Aliases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The runner keeps aliases in an unexported map; only the keys are read.
	runnerValue := reflect.ValueOf(s.runner).Elem()
	aliasField := runnerValue.FieldByName("alias")
	if !aliasField.IsValid() || aliasField.Kind() != reflect.Map || aliasField.IsNil() {
		return []string{}
	}

	names := make([]string, 0, aliasField.Len())
	for _, key := range aliasField.MapKeys() {
		names = append(names, key.String())
	}
	sort.Strings(names)
	return names
}

// RunInSubshell runs a command in a subshell, capturing output.
// A non-zero exit code is not an error; check the returned code.
func (s *Shell) RunInSubshell(ctx context.Context, command string) (string, string, int, error) {
	s.mu.RLock()
	subShell := s.runner.Subshell()
	s.mu.RUnlock()

	outBuf := &threadSafeBuffer{}
	errBuf := &threadSafeBuffer{}
	interp.StdIO(nil, outBuf, errBuf)(subShell) //nolint:errcheck

	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return "", "", 1, fmt.Errorf("failed to parse bash command: %w", err)
	}

	err = subShell.Run(ctx, prog)
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return outBuf.String(), errBuf.String(), int(exitStatus), nil
		}
		return outBuf.String(), errBuf.String(), 1, err
	}

	return outBuf.String(), errBuf.String(), 0, nil
}

// CallCompletionFunction runs a bash completion function in a subshell with
// the COMP_* variables set up for words, and returns its COMPREPLY.
// The last word is the one being completed.
func (s *Shell) CallCompletionFunction(ctx context.Context, name string, words []string) ([]string, error) {
	if len(words) == 0 {
		words = []string{""}
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		q, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			return nil, fmt.Errorf("failed to quote completion word %q: %w", w, err)
		}
		quoted[i] = q
	}

	line := strings.Join(words, " ")
	quotedLine, err := syntax.Quote(line, syntax.LangBash)
	if err != nil {
		return nil, fmt.Errorf("failed to quote completion line: %w", err)
	}

	cword := len(words) - 1
	script := fmt.Sprintf(`COMP_LINE=%s
COMP_POINT=%d
COMP_WORDS=(%s)
COMP_CWORD=%d
COMPREPLY=()
%s %s %s %s
for __gcomp_reply in "${COMPREPLY[@]}"; do
	printf '%%s\n' "$__gcomp_reply"
done
`,
		quotedLine,
		len(line),
		strings.Join(quoted, " "),
		cword,
		name, quoted[0], quoted[cword], previousWord(quoted, cword),
	)

	file, err := syntax.NewParser().Parse(strings.NewReader(script), name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse completion script: %w", err)
	}

	s.mu.RLock()
	subShell := s.runner.Subshell()
	s.mu.RUnlock()

	outBuf := &threadSafeBuffer{}
	interp.StdIO(nil, outBuf, io.Discard)(subShell) //nolint:errcheck

	if err := subShell.Run(ctx, file); err != nil {
		var exitStatus interp.ExitStatus
		if !errors.As(err, &exitStatus) {
			return nil, fmt.Errorf("failed to execute completion function %s: %w", name, err)
		}
	}

	out := strings.TrimSuffix(outBuf.String(), "\n")
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

func previousWord(quoted []string, cword int) string {
	if cword == 0 {
		return "''"
	}
	return quoted[cword-1]
}
