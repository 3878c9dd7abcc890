package shell

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/interp"
)

// CompletionType represents the type of completion.
type CompletionType string

const (
	// WordListCompletion represents word list based completion (-W option).
	WordListCompletion CompletionType = "W"
	// FunctionCompletion represents function based completion (-F option).
	FunctionCompletion CompletionType = "F"
)

// CompletionSpec represents a completion specification for a command.
type CompletionSpec struct {
	Command string
	Type    CompletionType
	Value   string   // function name or wordlist
	Options []string // -o options such as nospace or filenames
}

// SpecRegistry stores completion specifications registered with `complete`.
// It is read by completion providers while the rc file may still be adding
// to it, so access is synchronized.
type SpecRegistry struct {
	mu    sync.RWMutex
	specs map[string]CompletionSpec
}

// NewSpecRegistry creates a new SpecRegistry.
func NewSpecRegistry() *SpecRegistry {
	return &SpecRegistry{
		specs: make(map[string]CompletionSpec),
	}
}

// AddSpec adds or updates a completion specification.
func (r *SpecRegistry) AddSpec(spec CompletionSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Command] = spec
}

// RemoveSpec removes a completion specification.
func (r *SpecRegistry) RemoveSpec(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.specs, command)
}

// GetSpec retrieves a completion specification.
func (r *SpecRegistry) GetSpec(command string) (CompletionSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[command]
	return spec, ok
}

// ListSpecs returns all completion specifications sorted by command.
func (r *SpecRegistry) ListSpecs() []CompletionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]CompletionSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Command < specs[j].Command
	})
	return specs
}

// ExecuteSpec runs a completion specification for the given words and
// returns the candidates. The last word is the one being completed.
func (s *Shell) ExecuteSpec(ctx context.Context, spec CompletionSpec, words []string) ([]string, error) {
	switch spec.Type {
	case WordListCompletion:
		word := ""
		if len(words) > 0 {
			word = words[len(words)-1]
		}
		return filterWordList(spec.Value, word), nil

	case FunctionCompletion:
		return s.CallCompletionFunction(ctx, spec.Value, words)

	default:
		return nil, fmt.Errorf("unsupported completion type: %s", spec.Type)
	}
}

func filterWordList(wordList string, word string) []string {
	completions := make([]string, 0)
	for _, w := range strings.Fields(wordList) {
		if word == "" || strings.HasPrefix(w, word) {
			completions = append(completions, w)
		}
	}
	return completions
}

// NewCompleteCommandHandler creates an ExecHandler implementing the
// `complete` builtin on top of the registry.
func NewCompleteCommandHandler(registry *SpecRegistry) ExecMiddleware {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 || args[0] != "complete" {
				return next(ctx, args)
			}
			hc := interp.HandlerCtx(ctx)
			return builtinStatus(hc.Stderr, handleCompleteCommand(hc.Stdout, registry, args[1:]))
		}
	}
}

// builtinStatus turns a builtin's error into a message on stderr and exit
// status 2, so a bad line in an rc file does not abort the rest of it.
func builtinStatus(stderr io.Writer, err error) error {
	if err == nil {
		return nil
	}
	fmt.Fprintln(stderr, err)
	return interp.NewExitStatus(2)
}

func handleCompleteCommand(stdout io.Writer, registry *SpecRegistry, args []string) error {
	if len(args) == 0 {
		return printCompletionSpecs(stdout, registry, nil)
	}

	var (
		printMode  bool
		removeMode bool
		wordList   string
		function   string
		options    []string
		commands   []string
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-p":
			printMode = true
		case "-r":
			removeMode = true
		case "-W", "-F", "-o":
			if i+1 >= len(args) {
				return fmt.Errorf("complete: option %s requires an argument", arg)
			}
			i++
			switch arg {
			case "-W":
				wordList = args[i]
			case "-F":
				function = args[i]
			case "-o":
				options = append(options, args[i])
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return fmt.Errorf("complete: unknown option: %s", arg)
			}
			commands = append(commands, arg)
		}
	}

	if printMode {
		return printCompletionSpecs(stdout, registry, commands)
	}

	if len(commands) == 0 {
		return fmt.Errorf("complete: no command specified")
	}

	if removeMode {
		for _, command := range commands {
			registry.RemoveSpec(command)
		}
		return nil
	}

	var spec CompletionSpec
	switch {
	case function != "":
		spec = CompletionSpec{Type: FunctionCompletion, Value: function, Options: options}
	case wordList != "":
		spec = CompletionSpec{Type: WordListCompletion, Value: wordList, Options: options}
	default:
		return fmt.Errorf("complete: invalid usage, expected -W or -F")
	}

	for _, command := range commands {
		spec.Command = command
		registry.AddSpec(spec)
	}
	return nil
}

func printCompletionSpecs(stdout io.Writer, registry *SpecRegistry, commands []string) error {
	if len(commands) == 0 {
		for _, spec := range registry.ListSpecs() {
			printCompletionSpec(stdout, spec)
		}
		return nil
	}

	for _, command := range commands {
		if spec, ok := registry.GetSpec(command); ok {
			printCompletionSpec(stdout, spec)
		}
	}
	return nil
}

func printCompletionSpec(stdout io.Writer, spec CompletionSpec) {
	var opts string
	for _, o := range spec.Options {
		opts += "-o " + o + " "
	}
	switch spec.Type {
	case WordListCompletion:
		fmt.Fprintf(stdout, "complete %s-W %q %s\n", opts, spec.Value, spec.Command)
	case FunctionCompletion:
		fmt.Fprintf(stdout, "complete %s-F %s %s\n", opts, spec.Value, spec.Command)
	}
}

// NewCompgenCommandHandler creates an ExecHandler implementing the word list
// form of the `compgen` builtin, as used inside completion functions:
//
//	COMPREPLY=($(compgen -W "start stop" -- "$cur"))
func NewCompgenCommandHandler() ExecMiddleware {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 || args[0] != "compgen" {
				return next(ctx, args)
			}
			hc := interp.HandlerCtx(ctx)
			return builtinStatus(hc.Stderr, handleCompgenCommand(hc.Stdout, args[1:]))
		}
	}
}

func handleCompgenCommand(stdout io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("compgen: no options specified")
	}

	var (
		wordList    string
		hasWordList bool
		word        string
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-W":
			if i+1 >= len(args) {
				return fmt.Errorf("compgen: option -W requires a word list")
			}
			i++
			wordList = args[i]
			hasWordList = true
		case arg == "--":
			if i+1 < len(args) {
				word = args[i+1]
			}
			i = len(args)
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("compgen: unsupported option: %s", arg)
		default:
			word = arg
		}
	}

	if !hasWordList {
		return fmt.Errorf("compgen: no completion type specified")
	}

	for _, w := range filterWordList(wordList, word) {
		fmt.Fprintln(stdout, w)
	}
	return nil
}
