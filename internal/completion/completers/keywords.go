package completers

import (
	"context"
	"fmt"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/sahilm/fuzzy"
)

// KeywordID identifies the KeywordProvider.
const KeywordID = "keywords"

// Keyword is a bash reserved word or builtin with its help text.
type Keyword struct {
	Name        string
	Kind        string // "keyword" or "builtin"
	Description string
	Usage       string
}

// Help renders the documentation shown when a keyword item is resolved.
func (k Keyword) Help() string {
	return fmt.Sprintf("**%s** - %s\n\nUsage: `%s`", k.Name, k.Description, k.Usage)
}

var defaultKeywords = []Keyword{
	{"if", "keyword", "Run commands conditionally", "if COMMANDS; then COMMANDS; [elif COMMANDS; then COMMANDS;]... [else COMMANDS;] fi"},
	{"then", "keyword", "Start the body of an if or elif branch", "if COMMANDS; then COMMANDS; fi"},
	{"elif", "keyword", "Test another condition in an if statement", "elif COMMANDS; then COMMANDS;"},
	{"else", "keyword", "Run commands when no branch matched", "else COMMANDS;"},
	{"fi", "keyword", "End an if statement", "if COMMANDS; then COMMANDS; fi"},
	{"case", "keyword", "Run commands based on pattern matching", "case WORD in [PATTERN [| PATTERN]...) COMMANDS ;;]... esac"},
	{"esac", "keyword", "End a case statement", "case WORD in ... esac"},
	{"for", "keyword", "Run commands for each member of a list", "for NAME [in WORDS ... ] ; do COMMANDS; done"},
	{"select", "keyword", "Select words from a list and run commands", "select NAME [in WORDS ... ;] do COMMANDS; done"},
	{"while", "keyword", "Run commands as long as a test succeeds", "while COMMANDS; do COMMANDS; done"},
	{"until", "keyword", "Run commands as long as a test fails", "until COMMANDS; do COMMANDS; done"},
	{"do", "keyword", "Start the body of a loop", "do COMMANDS; done"},
	{"done", "keyword", "End the body of a loop", "do COMMANDS; done"},
	{"in", "keyword", "Introduce the word list of for, select or case", "for NAME in WORDS ...; do COMMANDS; done"},
	{"function", "keyword", "Define a shell function", "function NAME { COMMANDS ; }"},
	{"time", "keyword", "Report time consumed by a pipeline", "time [-p] PIPELINE"},
	{"coproc", "keyword", "Run a command asynchronously with a two-way pipe", "coproc [NAME] COMMAND [REDIRECTIONS]"},
	{"alias", "builtin", "Define or display aliases", "alias [-p] [name[=value] ... ]"},
	{"bg", "builtin", "Move jobs to the background", "bg [job_spec ...]"},
	{"builtin", "builtin", "Run a shell builtin", "builtin [shell-builtin [arg ...]]"},
	{"cd", "builtin", "Change the shell working directory", "cd [-L|[-P [-e]] [-@]] [dir]"},
	{"command", "builtin", "Run a command bypassing shell functions", "command [-pVv] command [arg ...]"},
	{"compgen", "builtin", "Display possible completions", "compgen [-W wordlist] [--] [word]"},
	{"complete", "builtin", "Specify how arguments are to be completed", "complete [-pr] [-o option] [-W wordlist] [-F function] [name ...]"},
	{"declare", "builtin", "Set variable values and attributes", "declare [-aAfFgiIlnrtux] [name[=value] ...]"},
	{"echo", "builtin", "Write arguments to the standard output", "echo [-neE] [arg ...]"},
	{"eval", "builtin", "Execute arguments as a shell command", "eval [arg ...]"},
	{"exec", "builtin", "Replace the shell with the given command", "exec [-cl] [-a name] [command [argument ...]] [redirection ...]"},
	{"exit", "builtin", "Exit the shell", "exit [n]"},
	{"export", "builtin", "Set export attribute for shell variables", "export [-fn] [name[=value] ...]"},
	{"fg", "builtin", "Move a job to the foreground", "fg [job_spec]"},
	{"jobs", "builtin", "Display status of jobs", "jobs [-lnprs] [jobspec ...]"},
	{"local", "builtin", "Define local variables", "local [option] name[=value] ..."},
	{"printf", "builtin", "Format and print arguments", "printf [-v var] format [arguments]"},
	{"pwd", "builtin", "Print the name of the current working directory", "pwd [-LP]"},
	{"read", "builtin", "Read a line from the standard input", "read [-ers] [-a array] [-d delim] [-p prompt] [name ...]"},
	{"return", "builtin", "Return from a shell function", "return [n]"},
	{"set", "builtin", "Set or unset shell options and positional parameters", "set [-abefhkmnptuvxBCHP] [-o option-name] [--] [arg ...]"},
	{"shift", "builtin", "Shift positional parameters", "shift [n]"},
	{"source", "builtin", "Execute commands from a file in the current shell", "source filename [arguments]"},
	{"test", "builtin", "Evaluate a conditional expression", "test [expr]"},
	{"trap", "builtin", "Trap signals and other events", "trap [-lp] [[arg] signal_spec ...]"},
	{"type", "builtin", "Display information about command type", "type [-afptP] name [name ...]"},
	{"umask", "builtin", "Display or set the file mode mask", "umask [-p] [-S] [mode]"},
	{"unalias", "builtin", "Remove aliases", "unalias [-a] name [name ...]"},
	{"unset", "builtin", "Unset values and attributes of variables and functions", "unset [-f] [-v] [-n] [name ...]"},
	{"wait", "builtin", "Wait for job completion", "wait [-fn] [id ...]"},
}

// keywordStarters are words after which a new command, and so a keyword,
// may follow.
var keywordStarters = map[string]bool{
	"then": true, "do": true, "else": true, "elif": true, "if": true, "while": true, "until": true,
	"time": true, "!": true, "&&": true, "||": true, "|": true, ";": true, "{": true, "(": true,
}

// keywordSource adapts a keyword list for fuzzy matching.
type keywordSource []Keyword

func (s keywordSource) String(i int) string { return s[i].Name }

func (s keywordSource) Len() int { return len(s) }

// KeywordProvider completes bash reserved words and builtins in command
// position, ranked by fuzzy match against the current word.
type KeywordProvider struct {
	keywords keywordSource
	byName   map[string]Keyword
}

// NewKeywordProvider creates a KeywordProvider over keywords, or over the
// default bash keywords when none are given.
func NewKeywordProvider(keywords ...Keyword) *KeywordProvider {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	byName := make(map[string]Keyword, len(keywords))
	for _, k := range keywords {
		byName[k.Name] = k
	}
	return &KeywordProvider{
		keywords: keywordSource(keywords),
		byName:   byName,
	}
}

func (p *KeywordProvider) Identifier() string {
	return KeywordID
}

func (p *KeywordProvider) IsApplicable(ec *completion.EditorContext) bool {
	return isShellContext(ec)
}

func (p *KeywordProvider) Fetch(ctx context.Context, req completion.Request, ec *completion.EditorContext) (*completion.Reply, error) {
	lc := newLineContext(req.Text, req.Offset)
	reply := &completion.Reply{Start: lc.start, End: lc.end, Items: []completion.Item{}}

	if lc.word == "" || !inCommandPosition(lc) {
		return reply, nil
	}

	for _, match := range fuzzy.FindFrom(lc.word, p.keywords) {
		k := p.keywords[match.Index]
		reply.Items = append(reply.Items, completion.Item{
			Label:  k.Name,
			Type:   k.Kind,
			Detail: k.Description,
		})
	}
	return reply, nil
}

// Resolve fills in the help text of a keyword item.
func (p *KeywordProvider) Resolve(ctx context.Context, item completion.Item, ec *completion.EditorContext) (completion.Item, error) {
	k, ok := p.byName[item.Label]
	if !ok {
		return item, fmt.Errorf("unknown keyword %q", item.Label)
	}
	item.Documentation = k.Help()
	return item, nil
}

func (p *KeywordProvider) ShouldShowContinuousHint(visible bool, change completion.ChangeEvent) bool {
	return isLetterInsert(change)
}

func inCommandPosition(lc lineContext) bool {
	if lc.isFirstWord() {
		return true
	}
	return keywordStarters[lc.words[len(lc.words)-1]]
}
