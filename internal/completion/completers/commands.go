package completers

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/shell"
)

// CommandID identifies the CommandProvider.
const CommandID = "commands"

// osReadDir is a variable that can be overridden for testing.
var osReadDir = os.ReadDir

// CommandProvider completes the command word of a line with shell aliases,
// executables on PATH, or executable files for path-like commands.
type CommandProvider struct {
	shell *shell.Shell
}

// NewCommandProvider creates a CommandProvider backed by sh.
func NewCommandProvider(sh *shell.Shell) *CommandProvider {
	return &CommandProvider{shell: sh}
}

func (p *CommandProvider) Identifier() string {
	return CommandID
}

func (p *CommandProvider) IsApplicable(ec *completion.EditorContext) bool {
	return isShellContext(ec)
}

func (p *CommandProvider) Fetch(ctx context.Context, req completion.Request, ec *completion.EditorContext) (*completion.Reply, error) {
	lc := newLineContext(req.Text, req.Offset)
	reply := &completion.Reply{Start: lc.start, End: lc.end, Items: []completion.Item{}}

	if !lc.isFirstWord() {
		return reply, nil
	}

	if IsPathBasedCommand(lc.word) {
		for _, path := range GetExecutableCompletions(lc.word, workingDir(ec, p.shell)) {
			reply.Items = append(reply.Items, completion.Item{
				Label: path,
				Type:  "executable",
			})
		}
		return reply, nil
	}

	if lc.word == "" {
		return reply, nil
	}

	seen := make(map[string]bool)
	for _, alias := range p.aliasCompletions(lc.word) {
		seen[alias] = true
		reply.Items = append(reply.Items, completion.Item{
			Label: alias,
			Type:  "alias",
		})
	}

	for _, command := range GetAvailableCommands(lc.word, p.pathEnv(ec)) {
		if seen[command] {
			continue
		}
		seen[command] = true
		reply.Items = append(reply.Items, completion.Item{
			Label: command,
			Type:  "command",
		})
	}

	return reply, nil
}

func (p *CommandProvider) ShouldShowContinuousHint(visible bool, change completion.ChangeEvent) bool {
	return !visible && isLetterInsert(change)
}

func (p *CommandProvider) aliasCompletions(prefix string) []string {
	if p.shell == nil {
		return []string{}
	}
	var completions []string
	for _, alias := range p.shell.Aliases() {
		if strings.HasPrefix(alias, prefix) {
			completions = append(completions, alias)
		}
	}
	return completions
}

// pathEnv prefers PATH from the editor context, then the shell, then the
// process environment.
func (p *CommandProvider) pathEnv(ec *completion.EditorContext) string {
	if ec != nil {
		if path, ok := ec.Env["PATH"]; ok {
			return path
		}
	}
	if p.shell != nil {
		if path := p.shell.GetVar("PATH"); path != "" {
			return path
		}
	}
	return os.Getenv("PATH")
}

func workingDir(ec *completion.EditorContext, sh *shell.Shell) string {
	if ec != nil && ec.WorkingDir != "" {
		return ec.WorkingDir
	}
	if sh != nil {
		return sh.Dir()
	}
	dir, _ := os.Getwd()
	return dir
}

// IsPathBasedCommand determines if a command looks like a path rather than a simple command name.
func IsPathBasedCommand(command string) bool {
	return strings.Contains(command, "/")
}

// GetExecutableCompletions returns executable files that match the given path prefix.
func GetExecutableCompletions(pathPrefix string, pwd string) []string {
	var searchDir, filePrefix string

	if strings.HasSuffix(pathPrefix, "/") {
		searchDir = pathPrefix
	} else {
		searchDir = filepath.Dir(pathPrefix)
		filePrefix = filepath.Base(pathPrefix)
	}

	entries, err := osReadDir(resolveDir(searchDir, pwd))
	if err != nil {
		return []string{}
	}

	completions := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}
		if !isExecutable(entry) {
			continue
		}
		if strings.HasSuffix(pathPrefix, "/") {
			completions = append(completions, pathPrefix+entry.Name())
		} else {
			// Keep "./" and "~/" as typed; filepath.Join would clean them away.
			completions = append(completions, pathPrefix[:len(pathPrefix)-len(filePrefix)]+entry.Name())
		}
	}

	sort.Strings(completions)
	return completions
}

// GetAvailableCommands returns executables on pathEnv that match the given prefix.
func GetAvailableCommands(prefix string, pathEnv string) []string {
	commands := make(map[string]bool)

	if pathEnv != "" {
		for _, dir := range filepath.SplitList(pathEnv) {
			entries, err := osReadDir(dir)
			if err != nil {
				continue
			}

			for _, entry := range entries {
				if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) && isExecutable(entry) {
					commands[entry.Name()] = true
				}
			}
		}
	}

	completions := make([]string, 0, len(commands))
	for cmd := range commands {
		completions = append(completions, cmd)
	}

	sort.Strings(completions)
	return completions
}

func isExecutable(entry os.DirEntry) bool {
	info, err := entry.Info()
	if err != nil {
		return false
	}
	return info.Mode()&0111 != 0
}

// resolveDir turns a directory as typed on the command line into an absolute path.
func resolveDir(dir string, pwd string) string {
	switch {
	case dir == "~" || strings.HasPrefix(dir, "~/"):
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return dir
		}
		return filepath.Join(homeDir, strings.TrimPrefix(dir, "~"))
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(pwd, dir)
	}
}
